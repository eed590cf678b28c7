package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/fxlab/pkg/config"
	"github.com/wonny/fxlab/pkg/database"
	"github.com/wonny/fxlab/pkg/logger"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "데이터베이스 관리",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "스키마 마이그레이션 적용",
	Long: `fx 스키마(currencies, exchange_sources, exchange_rates, model_specs,
forecast_runs, forecasts, backtest_runs, backtest_slices, backtest_metrics)를
생성하거나 최신 버전으로 올립니다.

Example:
  go run ./cmd/fx db migrate`,
	RunE: runDBMigrate,
}

var dbPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "PostgreSQL 연결 테스트",
	RunE:  runDBPing,
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbPingCmd)
}

func connectDB() (*database.DB, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, log, nil
}

func runDBMigrate(cmd *cobra.Command, args []string) error {
	db, log, err := connectDB()
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := database.Migrate(cmd.Context(), db.Pool, log.Zerolog())
	if err != nil {
		PrintError(err.Error())
		return err
	}
	if applied == 0 {
		PrintInfo(fmt.Sprintf("Schema already at version %d", database.LatestVersion()))
		return nil
	}
	PrintSuccess(fmt.Sprintf("Applied %d migration(s), schema at version %d", applied, database.LatestVersion()))
	return nil
}

func runDBPing(cmd *cobra.Command, args []string) error {
	db, _, err := connectDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
	defer cancel()

	status, err := db.HealthCheck(ctx)
	if err != nil {
		PrintError(err.Error())
		return err
	}
	PrintSuccess("Database reachable")
	PrintKeyValue("Response Time", status.ResponseTime.String(), 14)
	PrintKeyValue("Total Conns", fmt.Sprintf("%d", status.Stats.TotalConns), 14)
	PrintKeyValue("Idle Conns", fmt.Sprintf("%d", status.Stats.IdleConns), 14)
	return nil
}
