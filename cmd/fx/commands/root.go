package commands

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fx",
	Short: "fxlab - 환율 예측 및 백테스트",
	Long: `fxlab Unified CLI

일별 환율 수집, 일/주 단위 1-step 예측, rolling-origin 백테스트.

Usage:
  go run ./cmd/fx [command]

Examples:
  go run ./cmd/fx db migrate
  go run ./cmd/fx ingest --monthly --years 10
  go run ./cmd/fx forecast daily --model arima
  go run ./cmd/fx backtest run --model sma --param window=5
  go run ./cmd/fx api`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// --config/--env 는 config.Load 이전에 환경변수로 반영
		if configFile != "" {
			os.Setenv("FX_ENV_FILE", configFile)
		}
		if cmd.Flags().Changed("env") {
			os.Setenv("ENV", env)
		}
		if verbose {
			os.Setenv("LOG_LEVEL", "debug")
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
