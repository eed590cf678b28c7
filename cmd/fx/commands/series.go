package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/overview"
	"github.com/wonny/fxlab/internal/series"
)

var seriesCmd = &cobra.Command{
	Use:   "series",
	Short: "시계열 조회",
}

var seriesPeekCmd = &cobra.Command{
	Use:   "peek",
	Short: "통화쌍 시계열 끝부분 출력",
	Long: `저장된 환율로 일/주 단위 시계열을 만들어 마지막 N개를 출력합니다.

Example:
  go run ./cmd/fx series peek --quote EUR
  go run ./cmd/fx series peek --quote JPY --freq W --tail 8
  go run ./cmd/fx series peek --quote GBP --fill ffill`,
	RunE: runSeriesPeek,
}

var (
	peekBase  string
	peekQuote string
	peekFreq  string
	peekFill  string
	peekTail  int
)

func init() {
	rootCmd.AddCommand(seriesCmd)
	seriesCmd.AddCommand(seriesPeekCmd)

	seriesPeekCmd.Flags().StringVar(&peekBase, "base", "", "기준 통화")
	seriesPeekCmd.Flags().StringVar(&peekQuote, "quote", "", "대상 통화")
	seriesPeekCmd.Flags().StringVar(&peekFreq, "freq", "D", "주기 (D|W)")
	seriesPeekCmd.Flags().StringVar(&peekFill, "fill", "none", "결측 처리 (none|ffill)")
	seriesPeekCmd.Flags().IntVar(&peekTail, "tail", 10, "출력 개수")
	_ = seriesPeekCmd.MarkFlagRequired("quote")
}

func runSeriesPeek(cmd *cobra.Command, args []string) error {
	freq, err := contracts.ParseFrequency(peekFreq)
	if err != nil {
		return err
	}
	fill, err := series.ParseFill(peekFill)
	if err != nil {
		return err
	}

	a, err := newApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	s, err := a.loader.Load(cmd.Context(), series.Request{
		Base:  a.baseOr(peekBase),
		Quote: peekQuote,
		Freq:  freq,
		Fill:  fill,
	})
	if err != nil {
		return err
	}
	if s.IsEmpty() {
		PrintWarning(fmt.Sprintf("No data for %s", s.Pair()))
		return nil
	}

	fmt.Printf("\n%s (%s, %d points, %s ~ %s)\n\n", s.Pair(), s.Freq, s.Len(),
		contracts.FormatDate(s.First().Date), contracts.FormatDate(s.Last().Date))

	widths := []int{12, 12}
	PrintTableHeader([]string{"Date", "Rate"}, widths)
	for _, p := range s.Tail(peekTail).Points() {
		PrintTableRow([]string{contracts.FormatDate(p.Date), formatFloat(p.Value, 6)}, widths)
	}

	if freq == contracts.FreqDaily {
		m := overview.Compute(s)
		fmt.Println()
		PrintKeyValue("Daily %", formatPtr(m.DailyPct, 3), 9)
		PrintKeyValue("Weekly %", formatPtr(m.WeeklyPct, 3), 9)
		PrintKeyValue("Vol30", formatPtr(m.Vol30, 5), 9)
		PrintKeyValue("Streak", fmt.Sprintf("%d", m.StreakDays), 9)
	}
	return nil
}
