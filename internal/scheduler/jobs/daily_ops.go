package jobs

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/wonny/fxlab/internal/backtest"
	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/forecast"
	"github.com/wonny/fxlab/internal/rates"
)

// RateIngestor fetches missing days of rates
type RateIngestor interface {
	Daily(ctx context.Context, base string, quotes []string) (*rates.Result, error)
}

// SpecLister lists stored model specs
type SpecLister interface {
	ListModelSpecs(ctx context.Context, tf contracts.Timeframe, activeOnly bool) ([]contracts.ModelSpec, error)
}

// Forecaster runs forecast batches
type Forecaster interface {
	RunDailyBatch(ctx context.Context, base string, quotes []string, model string) (*forecast.BatchReport, error)
	RunWeeklyBatch(ctx context.Context, base string, quotes []string, model string) (*forecast.BatchReport, error)
}

// Backtester runs backtests
type Backtester interface {
	Run(ctx context.Context, opts backtest.Options) (*backtest.RunReport, error)
}

// ModelChecker reports registry availability
type ModelChecker interface {
	Has(name string) bool
}

// Settings are the pair list and windows the jobs operate on
type Settings struct {
	Base     string
	Quotes   []string
	Window   int
	Schedule string
}

// ModelOps is the outcome of one model in a daily ops run
type ModelOps struct {
	Model    string                `json:"model"`
	Forecast *forecast.BatchReport `json:"forecast,omitempty"`
	Backtest *backtest.RunReport   `json:"backtest,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// DailyOpsReport summarises a daily ops run
type DailyOpsReport struct {
	Ingest *rates.Result `json:"ingest"`
	Models []ModelOps    `json:"models"`
}

// DailyOpsJob ingests missing days, then forecasts and backtests every active daily model
// Schedule: weekdays 17:15 (after the ECB reference rates are published)
type DailyOpsJob struct {
	ingest   RateIngestor
	specs    SpecLister
	forecast Forecaster
	backtest Backtester
	models   ModelChecker
	settings Settings
	logger   zerolog.Logger
}

// NewDailyOpsJob creates the daily ops job
func NewDailyOpsJob(ingest RateIngestor, specs SpecLister, fc Forecaster, bt Backtester, models ModelChecker, settings Settings, log zerolog.Logger) *DailyOpsJob {
	return &DailyOpsJob{
		ingest:   ingest,
		specs:    specs,
		forecast: fc,
		backtest: bt,
		models:   models,
		settings: settings,
		logger:   log.With().Str("component", "jobs.daily_ops").Logger(),
	}
}

// Name returns the job name
func (j *DailyOpsJob) Name() string {
	return "fx_daily_ops"
}

// Schedule returns the cron schedule
func (j *DailyOpsJob) Schedule() string {
	if j.settings.Schedule == "" {
		return "0 15 17 * * 1-5"
	}
	return j.settings.Schedule
}

// Run executes the job for the scheduler
func (j *DailyOpsJob) Run(ctx context.Context) error {
	_, err := j.Execute(ctx)
	return err
}

// Execute runs the full pipeline. Ingestion and spec listing errors abort; model
// failures are recorded per model and the run continues.
func (j *DailyOpsJob) Execute(ctx context.Context) (*DailyOpsReport, error) {
	s := j.settings
	report := &DailyOpsReport{}

	ingested, err := j.ingest.Daily(ctx, s.Base, s.Quotes)
	if err != nil {
		return nil, fmt.Errorf("daily ingest: %w", err)
	}
	report.Ingest = ingested

	specs, err := j.specs.ListModelSpecs(ctx, contracts.TimeframeDaily, true)
	if err != nil {
		return nil, fmt.Errorf("list daily model specs: %w", err)
	}
	keys := modelKeys(specs, func(spec contracts.ModelSpec) bool { return spec.HorizonDays == 1 })
	if len(keys) == 0 {
		j.logger.Warn().Msg("no active daily model specs")
		return report, nil
	}

	for _, model := range keys {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		ops := ModelOps{Model: model}
		if !j.models.Has(model) {
			ops.Error = "model not available in registry"
			j.logger.Warn().Str("model", model).Msg("daily ops model skipped")
			report.Models = append(report.Models, ops)
			continue
		}

		fc, err := j.forecast.RunDailyBatch(ctx, s.Base, s.Quotes, model)
		if err != nil {
			ops.Error = err.Error()
			j.logger.Error().Err(err).Str("model", model).Msg("daily forecasts failed")
			report.Models = append(report.Models, ops)
			continue
		}
		ops.Forecast = fc

		bt, err := j.backtest.Run(ctx, backtest.Options{
			Base:      s.Base,
			Quotes:    s.Quotes,
			Model:     model,
			Timeframe: contracts.TimeframeDaily,
			Window:    s.Window,
			Horizon:   1,
		})
		if err != nil {
			ops.Error = err.Error()
			j.logger.Error().Err(err).Str("model", model).Msg("daily backtest failed")
		}
		ops.Backtest = bt
		report.Models = append(report.Models, ops)
	}

	j.logger.Info().
		Int("inserted", report.Ingest.Inserted).
		Int("models", len(report.Models)).
		Msg("daily ops finished")
	return report, nil
}

// modelKeys returns distinct registry keys of matching specs, sorted
func modelKeys(specs []contracts.ModelSpec, keep func(contracts.ModelSpec) bool) []string {
	seen := map[string]bool{}
	var out []string
	for _, spec := range specs {
		if keep != nil && !keep(spec) {
			continue
		}
		key := spec.ModelKey()
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
