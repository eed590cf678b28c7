package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/rates"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "환율 수집 (Frankfurter)",
	Long: `Frankfurter API 에서 일별 환율을 수집하여 저장합니다.
이미 저장된 (source, base, quote, date) 행은 건너뜁니다.

Modes:
  --daily                  마지막 저장일 다음날부터 오늘까지 (기본)
  --monthly --years N      최근 N년 월 단위 backfill
  --start D --end D        기간 지정 (월 단위 chunk)
  --date D                 하루만

Example:
  go run ./cmd/fx ingest --daily
  go run ./cmd/fx ingest --monthly --years 10 --quotes EUR,GBP,JPY
  go run ./cmd/fx ingest --start 2024-01-01 --end 2024-03-31`,
	RunE: runIngest,
}

var (
	ingestDaily   bool
	ingestMonthly bool
	ingestYears   int
	ingestStart   string
	ingestEnd     string
	ingestDate    string
	ingestBase    string
	ingestQuotes  string
)

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().BoolVar(&ingestDaily, "daily", false, "마지막 저장일 이후 수집")
	ingestCmd.Flags().BoolVar(&ingestMonthly, "monthly", false, "월 단위 backfill")
	ingestCmd.Flags().IntVar(&ingestYears, "years", rates.DefaultBackfillYears, "backfill 기간 (년)")
	ingestCmd.Flags().StringVar(&ingestStart, "start", "", "시작 날짜 (YYYY-MM-DD)")
	ingestCmd.Flags().StringVar(&ingestEnd, "end", "", "종료 날짜 (YYYY-MM-DD, 기본: 오늘)")
	ingestCmd.Flags().StringVar(&ingestDate, "date", "", "단일 날짜 (YYYY-MM-DD)")
	ingestCmd.Flags().StringVar(&ingestBase, "base", "", "기준 통화 (기본: FX_BASE)")
	ingestCmd.Flags().StringVar(&ingestQuotes, "quotes", "", "대상 통화 CSV (기본: FX_QUOTES)")
}

type ingestMode string

const (
	modeDaily   ingestMode = "daily"
	modeMonthly ingestMode = "monthly"
	modeRange   ingestMode = "range"
	modeDay     ingestMode = "day"
)

// resolveIngestMode picks exactly one mode from the flags
func resolveIngestMode(daily, monthly bool, start, date string) (ingestMode, error) {
	var modes []ingestMode
	if daily {
		modes = append(modes, modeDaily)
	}
	if monthly {
		modes = append(modes, modeMonthly)
	}
	if start != "" {
		modes = append(modes, modeRange)
	}
	if date != "" {
		modes = append(modes, modeDay)
	}
	switch len(modes) {
	case 0:
		return modeDaily, nil
	case 1:
		return modes[0], nil
	}
	return "", fmt.Errorf("%w: choose one of --daily, --monthly, --start, --date", contracts.ErrInvalidParam)
}

func runIngest(cmd *cobra.Command, args []string) error {
	mode, err := resolveIngestMode(ingestDaily, ingestMonthly, ingestStart, ingestDate)
	if err != nil {
		return err
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	base, quotes := a.baseOr(ingestBase), a.quotesOr(ingestQuotes)
	started := time.Now()

	PrintRunHeader(RunHeader{Title: "Rate Ingestion (" + string(mode) + ")", Tag: "Ingest", Base: base, Quotes: quotes})

	var res *rates.Result
	switch mode {
	case modeDaily:
		res, err = a.ingestor.Daily(ctx, base, quotes)
	case modeMonthly:
		res, err = a.ingestor.Backfill(ctx, ingestYears, base, quotes)
	case modeRange:
		var start, end time.Time
		if start, err = contracts.ParseDate(ingestStart); err != nil {
			return err
		}
		end = contracts.DateOf(time.Now())
		if ingestEnd != "" {
			if end, err = contracts.ParseDate(ingestEnd); err != nil {
				return err
			}
		}
		res, err = a.ingestor.Range(ctx, start, end, base, quotes)
	case modeDay:
		var d time.Time
		if d, err = contracts.ParseDate(ingestDate); err != nil {
			return err
		}
		res, err = a.ingestor.Day(ctx, d, base, quotes)
	}
	if err != nil {
		PrintError(err.Error())
		return err
	}

	if res.UpToDate {
		PrintInfo("Already up to date")
		return nil
	}
	PrintKeyValue("Period", contracts.FormatDate(res.Start)+" ~ "+contracts.FormatDate(res.End), 10)
	PrintKeyValue("Chunks", fmt.Sprintf("%d", res.Chunks), 10)
	PrintKeyValue("Attempted", fmt.Sprintf("%d", res.Attempted), 10)
	PrintKeyValue("Inserted", fmt.Sprintf("%d", res.Inserted), 10)
	PrintCompletion("Ingest", started)
	return nil
}
