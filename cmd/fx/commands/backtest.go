package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/fxlab/internal/backtest"
	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/models"
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Rolling-origin 백테스트",
}

var backtestRunCmd = &cobra.Command{
	Use:   "run",
	Short: "백테스트 실행",
	Long: `마지막 W 개 시점마다 이전 데이터만으로 1-step 예측 후 실제값과 비교합니다.
결과(slice, MAPE/RMSE/MAE)는 run id 로 저장됩니다.

Example:
  go run ./cmd/fx backtest run --model naive
  go run ./cmd/fx backtest run --model arima --param order=1,1,0 --window 120
  go run ./cmd/fx backtest run --model sma --param period=5 --timeframe W`,
	RunE: runBacktest,
}

var (
	btBase      string
	btQuotes    string
	btModel     string
	btTimeframe string
	btWindow    int
	btHorizon   int
	btParams    []string
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	backtestRunCmd.Flags().StringVar(&btBase, "base", "", "기준 통화")
	backtestRunCmd.Flags().StringVar(&btQuotes, "quotes", "", "대상 통화 CSV")
	backtestRunCmd.Flags().StringVar(&btModel, "model", "", "모델 키")
	backtestRunCmd.Flags().StringVar(&btTimeframe, "timeframe", "D", "D|W")
	backtestRunCmd.Flags().IntVar(&btWindow, "window", 0, "평가 시점 수 (기본: FX_BACKTEST_WINDOW)")
	backtestRunCmd.Flags().IntVar(&btHorizon, "horizon", 0, "예측 step 수 (기본: FX_HORIZON)")
	backtestRunCmd.Flags().StringArrayVar(&btParams, "param", nil, "모델 파라미터 k=v (반복 가능)")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	params, err := models.ParseAssignments(btParams)
	if err != nil {
		return err
	}
	tf, err := contracts.ParseTimeframe(btTimeframe)
	if err != nil {
		return err
	}

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := backtest.Options{
		Base:      a.baseOr(btBase),
		Quotes:    a.quotesOr(btQuotes),
		Model:     a.modelOr(btModel),
		Timeframe: tf,
		Window:    btWindow,
		Horizon:   btHorizon,
		Params:    params,
	}
	if opts.Window <= 0 {
		opts.Window = a.cfg.Forecast.BacktestWindow
	}
	if opts.Horizon <= 0 {
		opts.Horizon = a.cfg.Forecast.Horizon
	}
	started := time.Now()

	PrintRunHeader(RunHeader{Title: "Backtest (" + tf.Label() + ")", Tag: "Backtest", Base: opts.Base, Quotes: opts.Quotes, Model: opts.Model})
	PrintKeyValue("Window", fmt.Sprintf("%d", opts.Window), 8)
	PrintKeyValue("Horizon", fmt.Sprintf("%d", opts.Horizon), 8)

	report, err := a.backtester.Run(cmd.Context(), opts)
	if err != nil {
		PrintError(err.Error())
		return err
	}

	printBacktestReport(report)
	PrintCompletion("Backtest", started)
	return nil
}

func printBacktestReport(report *backtest.RunReport) {
	fmt.Println()
	PrintKeyValue("Run ID", report.RunID.String(), 8)
	PrintKeyValue("Model", report.ModelCode, 8)
	if !report.WindowStart.IsZero() {
		PrintKeyValue("Window", contracts.FormatDate(report.WindowStart)+" ~ "+contracts.FormatDate(report.WindowEnd), 8)
	}
	fmt.Println()

	widths := []int{4, 6, 8, 10, 10, 10, 30}
	PrintTableHeader([]string{"", "Quote", "N", "MAPE %", "RMSE", "MAE", "Note"}, widths)
	for _, q := range report.Quotes {
		row := []string{statusIcon(q.Status), q.Quote, "-", "-", "-", "-", q.Error}
		if m := q.Metrics; m != nil {
			row[2] = fmt.Sprintf("%d", m.N)
			row[3] = formatPtr(m.MAPE, 3)
			row[4] = formatPtr(m.RMSE, 6)
			row[5] = formatPtr(m.MAE, 6)
		}
		PrintTableRow(row, widths)
	}
	fmt.Printf("\nok=%d skipped=%d failed=%d\n",
		report.Count(contracts.QuoteOK), report.Count(contracts.QuoteSkipped), report.Count(contracts.QuoteFailed))
}
