package commands

import (
	"fmt"

	"github.com/wonny/fxlab/internal/backtest"
	"github.com/wonny/fxlab/internal/forecast"
	"github.com/wonny/fxlab/internal/models"
	"github.com/wonny/fxlab/internal/overview"
	"github.com/wonny/fxlab/internal/rates"
	"github.com/wonny/fxlab/internal/scheduler/jobs"
	"github.com/wonny/fxlab/internal/series"
	"github.com/wonny/fxlab/pkg/config"
	"github.com/wonny/fxlab/pkg/database"
	"github.com/wonny/fxlab/pkg/logger"
	"github.com/wonny/fxlab/pkg/redis"
)

// app bundles the wired services every command draws from
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.DB
	redis  *redis.Client
	cache  *redis.Cache
	source string

	rates     *rates.Repository
	forecasts *forecast.Repository
	backtests *backtest.Repository
	registry  *models.Registry

	loader     *series.Loader
	ingestor   *rates.Ingestor
	forecaster *forecast.Service
	backtester *backtest.Runner
	overview   *overview.Service
}

// newApp loads config and connects storage. withModels also builds the model registry.
// ⭐ SSOT: 의존성 조립은 이 함수에서만
func newApp(withModels bool) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 4. Redis (비활성화 시 캐시 no-op)
	rc, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, series cache disabled")
		rc = redis.Disabled()
	}

	a := &app{
		cfg:       cfg,
		log:       log,
		db:        db,
		redis:     rc,
		cache:     redis.NewCache(rc, "fxlab"),
		source:    cfg.Frankfurter.SourceCode,
		rates:     rates.NewRepository(db.Pool),
		forecasts: forecast.NewRepository(db.Pool),
		backtests: backtest.NewRepository(db.Pool),
	}

	// 5. Series loader and ingestion
	a.loader = series.NewLoader(a.rates, a.rates, a.source, log.Zerolog()).WithCache(a.cache, cfg.Redis.TTL)
	a.ingestor = rates.NewIngestor(rates.NewFrankfurter(cfg.Frankfurter, log), a.rates, log.Zerolog()).WithCache(a.cache)
	a.overview = overview.NewService(a.loader, log.Zerolog())

	if !withModels {
		return a, nil
	}

	// 6. Model registry and pipelines
	reg, err := models.Default(cfg.Models, log.Zerolog())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build model registry: %w", err)
	}
	a.registry = reg
	a.forecaster = forecast.NewService(a.loader, reg, a.rates, a.forecasts, log.Zerolog())
	a.backtester = backtest.NewRunner(a.loader, reg, a.rates, a.backtests, log.Zerolog())

	return a, nil
}

// Close releases storage connections
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

// baseOr returns flag, or the configured base when empty
func (a *app) baseOr(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.Forecast.Base
}

// quotesOr parses a CSV flag, or returns the configured quotes when empty
func (a *app) quotesOr(flag string) []string {
	if q := config.SplitCodes(flag); len(q) > 0 {
		return q
	}
	return append([]string(nil), a.cfg.Forecast.Quotes...)
}

// modelOr returns flag, or the configured model when empty
func (a *app) modelOr(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.Forecast.Model
}

// jobSettings returns the pair list and windows the scheduled jobs use
func (a *app) jobSettings(schedule string) jobs.Settings {
	return jobs.Settings{
		Base:     a.cfg.Forecast.Base,
		Quotes:   a.cfg.Forecast.Quotes,
		Window:   a.cfg.Forecast.BacktestWindow,
		Schedule: schedule,
	}
}

func (a *app) dailyOpsJob() *jobs.DailyOpsJob {
	return jobs.NewDailyOpsJob(a.ingestor, a.forecasts, a.forecaster, a.backtester, a.registry,
		a.jobSettings(a.cfg.Scheduler.DailyOpsSpec), a.log.Zerolog())
}

func (a *app) weeklyForecastJob() *jobs.WeeklyForecastJob {
	return jobs.NewWeeklyForecastJob(a.forecasts, a.forecaster, a.registry,
		a.jobSettings(a.cfg.Scheduler.WeeklyForecastSpec), a.log.Zerolog())
}
