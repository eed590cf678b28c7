package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/forecast"
)

// WeeklyForecastJob runs the weekly forecast batch for naive plus every active weekly spec
// Schedule: Saturday 09:00, after the Friday close is ingested
type WeeklyForecastJob struct {
	specs    SpecLister
	forecast Forecaster
	models   ModelChecker
	settings Settings
	logger   zerolog.Logger
}

// NewWeeklyForecastJob creates the weekly forecast job
func NewWeeklyForecastJob(specs SpecLister, fc Forecaster, models ModelChecker, settings Settings, log zerolog.Logger) *WeeklyForecastJob {
	return &WeeklyForecastJob{
		specs:    specs,
		forecast: fc,
		models:   models,
		settings: settings,
		logger:   log.With().Str("component", "jobs.weekly_forecast").Logger(),
	}
}

// Name returns the job name
func (j *WeeklyForecastJob) Name() string {
	return "fx_weekly_forecast"
}

// Schedule returns the cron schedule
func (j *WeeklyForecastJob) Schedule() string {
	if j.settings.Schedule == "" {
		return "0 0 9 * * 6"
	}
	return j.settings.Schedule
}

// Run executes the weekly batches; every model runs even if an earlier one fails
func (j *WeeklyForecastJob) Run(ctx context.Context) error {
	_, err := j.Execute(ctx)
	return err
}

// Execute returns one batch report per model that ran
func (j *WeeklyForecastJob) Execute(ctx context.Context) ([]*forecast.BatchReport, error) {
	specs, err := j.specs.ListModelSpecs(ctx, contracts.TimeframeWeekly, true)
	if err != nil {
		return nil, fmt.Errorf("list weekly model specs: %w", err)
	}

	keys := []string{"naive"}
	for _, k := range modelKeys(specs, nil) {
		if k != "naive" && j.models.Has(k) {
			keys = append(keys, k)
		}
	}

	var (
		reports []*forecast.BatchReport
		errs    []error
	)
	for _, model := range keys {
		report, err := j.forecast.RunWeeklyBatch(ctx, j.settings.Base, j.settings.Quotes, model)
		if err != nil {
			j.logger.Error().Err(err).Str("model", model).Msg("weekly forecasts failed")
			errs = append(errs, fmt.Errorf("%s: %w", model, err))
			continue
		}
		reports = append(reports, report)
	}

	j.logger.Info().Strs("models", keys).Int("ok", len(reports)).Msg("weekly forecasts finished")
	return reports, errors.Join(errs...)
}
