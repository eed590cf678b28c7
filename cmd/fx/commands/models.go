package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/wonny/fxlab/internal/contracts"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "모델 레지스트리",
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "사용 가능한 모델 목록",
	Long: `내장 모델과 카탈로그(config/models.yaml) 외부 모델 중
사용 가능한 것과 사용 불가 사유를 출력합니다.

Example:
  go run ./cmd/fx models list`,
	RunE: runModelsList,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd)
}

func runModelsList(cmd *cobra.Command, args []string) error {
	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println("\nAvailable models:")
	widths := []int{12, 10}
	PrintTableHeader([]string{"Key", "Library"}, widths)
	for _, name := range a.registry.Names() {
		entry, err := a.registry.Entry(name)
		if err != nil {
			continue
		}
		PrintTableRow([]string{name, string(entry.Library)}, widths)
	}

	if un := a.registry.Unavailable(); len(un) > 0 {
		fmt.Println("\nUnavailable:")
		keys := make([]string, 0, len(un))
		for k := range un {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			PrintError(fmt.Sprintf("%s: %s", k, un[k]))
		}
	}

	specs, err := a.forecasts.ListModelSpecs(cmd.Context(), "", false)
	if err != nil {
		return err
	}
	if len(specs) > 0 {
		fmt.Println("\nStored specs:")
		widths := []int{20, 10, 4, 8, 7}
		PrintTableHeader([]string{"Code", "Library", "TF", "Horizon", "Active"}, widths)
		for _, s := range specs {
			PrintTableRow([]string{s.Code, string(s.Library), string(s.Timeframe),
				fmt.Sprintf("%d", s.HorizonDays), activeMark(s)}, widths)
		}
	}
	return nil
}

func activeMark(s contracts.ModelSpec) string {
	if s.Active {
		return "yes"
	}
	return "no"
}
