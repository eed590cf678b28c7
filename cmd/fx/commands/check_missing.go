package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/rates"
)

var checkMissingCmd = &cobra.Command{
	Use:   "check-missing",
	Short: "영업일 누락 검사",
	Long: `저장된 환율에서 누락된 영업일(월-금)을 통화별로 찾습니다.

Example:
  go run ./cmd/fx check-missing
  go run ./cmd/fx check-missing --quotes EUR,JPY --start 2024-01-01`,
	RunE: runCheckMissing,
}

var (
	missingBase   string
	missingQuotes string
	missingStart  string
	missingEnd    string
)

// maxListedGaps is how many missing dates are printed per quote
const maxListedGaps = 10

func init() {
	rootCmd.AddCommand(checkMissingCmd)

	checkMissingCmd.Flags().StringVar(&missingBase, "base", "", "기준 통화")
	checkMissingCmd.Flags().StringVar(&missingQuotes, "quotes", "", "대상 통화 CSV")
	checkMissingCmd.Flags().StringVar(&missingStart, "start", "", "시작 날짜 (기본: 첫 저장일)")
	checkMissingCmd.Flags().StringVar(&missingEnd, "end", "", "종료 날짜 (기본: 마지막 저장일)")
}

func optionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	d, err := contracts.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func runCheckMissing(cmd *cobra.Command, args []string) error {
	start, err := optionalDate(missingStart)
	if err != nil {
		return err
	}
	end, err := optionalDate(missingEnd)
	if err != nil {
		return err
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	base, quotes := a.baseOr(missingBase), a.quotesOr(missingQuotes)
	scan, err := rates.FindGaps(cmd.Context(), a.rates, a.source, base, quotes, start, end)
	if errors.Is(err, rates.ErrNoRates) {
		PrintWarning(fmt.Sprintf("No rates stored for %s. Run `fx ingest` first.", base))
		return nil
	}
	if err != nil {
		return err
	}

	PrintRunHeader(RunHeader{
		Title:  "Missing Business Days",
		Tag:    "Check",
		Base:   scan.Base,
		Quotes: quotes,
		Period: &Period{StartDate: contracts.FormatDate(scan.From), EndDate: contracts.FormatDate(scan.To)},
	})

	for _, p := range scan.Pairs {
		if len(p.Missing) == 0 {
			PrintSuccess(fmt.Sprintf("%s/%s complete", base, p.Quote))
			continue
		}
		PrintError(fmt.Sprintf("%s/%s missing %d day(s)", base, p.Quote, len(p.Missing)))
		var items []string
		for i, d := range p.Missing {
			if i == maxListedGaps {
				items = append(items, fmt.Sprintf("... %d more", len(p.Missing)-maxListedGaps))
				break
			}
			items = append(items, contracts.FormatDate(d))
		}
		PrintList(items)
	}

	if scan.Complete() {
		fmt.Println()
		PrintSuccess("No gaps found")
	}
	return nil
}
