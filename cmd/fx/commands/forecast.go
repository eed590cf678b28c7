package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/forecast"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "1-step 환율 예측",
	Long: `마지막 관측일(daily) 또는 마지막 실제 금요일(weekly)을 cutoff 로
다음 영업일 / 다음 금요일을 예측하여 저장합니다.

명령어:
  daily    다음 영업일 예측
  weekly   다음 금요일 예측`,
}

var (
	forecastBase   string
	forecastQuotes string
	forecastModel  string
)

var forecastDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "다음 영업일 예측",
	Long: `Example:
  go run ./cmd/fx forecast daily
  go run ./cmd/fx forecast daily --model arima --quotes EUR,JPY`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runForecast(cmd, contracts.TimeframeDaily)
	},
}

var forecastWeeklyCmd = &cobra.Command{
	Use:   "weekly",
	Short: "다음 금요일 예측",
	Long: `Example:
  go run ./cmd/fx forecast weekly --model naive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runForecast(cmd, contracts.TimeframeWeekly)
	},
}

func init() {
	rootCmd.AddCommand(forecastCmd)
	forecastCmd.AddCommand(forecastDailyCmd)
	forecastCmd.AddCommand(forecastWeeklyCmd)

	forecastCmd.PersistentFlags().StringVar(&forecastBase, "base", "", "기준 통화")
	forecastCmd.PersistentFlags().StringVar(&forecastQuotes, "quotes", "", "대상 통화 CSV")
	forecastCmd.PersistentFlags().StringVar(&forecastModel, "model", "", "모델 키 (기본: FX_MODEL)")
}

func runForecast(cmd *cobra.Command, tf contracts.Timeframe) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	base, quotes, model := a.baseOr(forecastBase), a.quotesOr(forecastQuotes), a.modelOr(forecastModel)
	started := time.Now()

	PrintRunHeader(RunHeader{Title: "Forecast (" + tf.Label() + ")", Tag: "Forecast", Base: base, Quotes: quotes, Model: model})

	var report *forecast.BatchReport
	if tf == contracts.TimeframeWeekly {
		report, err = a.forecaster.RunWeeklyBatch(ctx, base, quotes, model)
	} else {
		report, err = a.forecaster.RunDailyBatch(ctx, base, quotes, model)
	}
	if err != nil {
		PrintError(err.Error())
		return err
	}

	printForecastReport(report)
	PrintCompletion("Forecast", started)

	if report.Count(contracts.QuoteFailed) > 0 {
		return fmt.Errorf("%d quote(s) failed", report.Count(contracts.QuoteFailed))
	}
	return nil
}

func printForecastReport(report *forecast.BatchReport) {
	fmt.Println()
	widths := []int{4, 6, 12, 12, 12, 22}
	PrintTableHeader([]string{"", "Quote", "Cutoff", "Target", "Yhat", "Interval"}, widths)
	for _, q := range report.Quotes {
		if q.Outcome == nil {
			PrintTableRow([]string{statusIcon(q.Status), q.Quote, "-", "-", "-", q.Error}, widths)
			continue
		}
		o := q.Outcome
		interval := "-"
		if o.Lower != nil && o.Upper != nil {
			interval = formatFloat(*o.Lower, 6) + " ~ " + formatFloat(*o.Upper, 6)
		}
		PrintTableRow([]string{
			statusIcon(q.Status), q.Quote,
			contracts.FormatDate(o.Cutoff), contracts.FormatDate(o.Target),
			formatFloat(o.Yhat, 6), interval,
		}, widths)
	}
	fmt.Printf("\nok=%d skipped=%d failed=%d\n",
		report.Count(contracts.QuoteOK), report.Count(contracts.QuoteSkipped), report.Count(contracts.QuoteFailed))
}
