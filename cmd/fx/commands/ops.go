package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var opsCmd = &cobra.Command{
	Use:   "ops",
	Short: "운영 파이프라인",
}

var opsDailyCmd = &cobra.Command{
	Use:   "daily",
	Short: "일일 운영 (수집 → 예측 → 백테스트)",
	Long: `누락된 환율을 수집한 뒤, horizon 1 인 활성 daily 모델 스펙마다
daily 예측 배치와 daily 백테스트를 실행합니다.

Example:
  go run ./cmd/fx ops daily`,
	RunE: runOpsDaily,
}

func init() {
	rootCmd.AddCommand(opsCmd)
	opsCmd.AddCommand(opsDailyCmd)
}

func runOpsDaily(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	started := time.Now()
	PrintRunHeader(RunHeader{Title: "Daily Ops", Tag: "Ops", Base: a.cfg.Forecast.Base, Quotes: a.cfg.Forecast.Quotes})

	report, err := a.dailyOpsJob().Execute(cmd.Context())
	if err != nil {
		PrintError(err.Error())
		return err
	}

	if report.Ingest.UpToDate {
		PrintInfo("Rates already up to date")
	} else {
		PrintSuccess(fmt.Sprintf("Ingested %d row(s) (%s ~ %s)", report.Ingest.Inserted,
			report.Ingest.Start.Format("2006-01-02"), report.Ingest.End.Format("2006-01-02")))
	}
	if len(report.Models) == 0 {
		PrintWarning("No active daily model specs. Run `fx forecast daily` once to register one.")
	}

	failed := 0
	for _, m := range report.Models {
		PrintSeparator()
		fmt.Printf("📊 %s\n", m.Model)
		if m.Error != "" {
			failed++
			PrintError(m.Error)
		}
		if m.Forecast != nil {
			printForecastReport(m.Forecast)
		}
		if m.Backtest != nil {
			printBacktestReport(m.Backtest)
		}
	}

	PrintCompletion("Daily ops", started)
	if failed > 0 {
		return fmt.Errorf("%d model(s) failed", failed)
	}
	return nil
}
