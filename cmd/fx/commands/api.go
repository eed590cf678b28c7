package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/fxlab/internal/api"
	"github.com/wonny/fxlab/internal/api/handlers"
	"github.com/wonny/fxlab/internal/contracts"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `대시보드/운영용 JSON API 서버를 시작합니다.

Endpoints:
  GET  /health                            - Health check
  GET  /metrics                           - Prometheus metrics
  GET  /api/models                        - 모델 레지스트리 / 스펙
  GET  /api/series                        - 통화쌍 시계열
  GET  /api/overview                      - 통화쌍 요약 지표
  GET  /api/forecasts/latest              - 최근 cutoff 예측
  GET  /api/forecasts/runs                - 예측 run 목록
  GET  /api/backtests/runs                - 백테스트 run 목록
  GET  /api/backtests/runs/{id}/metrics   - run 지표
  GET  /api/backtests/runs/{id}/slices    - run slice
  POST /api/ops/forecast                  - 예측 배치 실행
  POST /api/ops/backtest                  - 백테스트 실행
  POST /api/ops/ingest                    - 환율 수집

Example:
  go run ./cmd/fx api
  go run ./cmd/fx api --port 8080`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== fxlab API Server ===")

	a, err := newApp(true)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg, log := a.cfg, a.log
	if apiPort != "" {
		cfg.Port = apiPort
	}

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	router := api.NewRouter(api.Handlers{
		Models:   handlers.NewModelsHandler(a.registry, a.forecasts, log),
		Series:   handlers.NewSeriesHandler(a.loader, a.overview, contracts.DefaultUSDQuotes, log),
		Forecast: handlers.NewForecastHandler(a.forecasts, log),
		Backtest: handlers.NewBacktestHandler(a.backtests, log),
		Ops:      handlers.NewOpsHandler(a.forecaster, a.backtester, a.ingestor, a.registry, contracts.DefaultUSDQuotes, log),
	}, log, cfg.MetricsEnabled)

	server := api.New(cfg, log, router)

	// Start server with graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
