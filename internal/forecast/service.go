package forecast

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/metrics"
	"github.com/wonny/fxlab/internal/models"
	"github.com/wonny/fxlab/internal/series"
)

// SeriesLoader loads calendar-normalised series
type SeriesLoader interface {
	Load(ctx context.Context, req series.Request) (contracts.Series, error)
}

// ModelSource resolves model keys to adapters
type ModelSource interface {
	Get(name string) (models.Adapter, error)
	Entry(name string) (models.Entry, error)
}

// CurrencyLookup resolves currency codes
type CurrencyLookup interface {
	GetCurrency(ctx context.Context, code string) (*contracts.Currency, error)
}

// Store persists one forecast result
type Store interface {
	SaveForecast(ctx context.Context, rec Record) (*SaveResult, error)
}

// Record is everything written for one (run, quote) forecast
type Record struct {
	Spec      contracts.ModelSpec
	Timeframe contracts.Timeframe
	Cutoff    time.Time
	ModelName string
	Base      string
	Quote     string
	Result    *contracts.ForecastResult
}

// SaveResult reports what the store wrote
type SaveResult struct {
	RunID    int64
	ModelID  int64
	Inserted int
}

// Outcome is one produced forecast
type Outcome struct {
	Base         string              `json:"base"`
	Quote        string              `json:"quote"`
	Timeframe    contracts.Timeframe `json:"timeframe"`
	Model        string              `json:"model"`
	ModelName    string              `json:"model_name"`
	Cutoff       time.Time           `json:"cutoff"`
	Target       time.Time           `json:"target"`
	Yhat         float64             `json:"yhat"`
	Lower        *float64            `json:"yhat_lower,omitempty"`
	Upper        *float64            `json:"yhat_upper,omitempty"`
	TrainSize    int                 `json:"train_size"`
	RunID        int64               `json:"run_id"`
	RowsInserted int                 `json:"rows_inserted"`
}

// QuoteStatus is the per-quote line of a batch report
type QuoteStatus struct {
	Quote   string               `json:"quote"`
	Status  contracts.QuoteState `json:"status"`
	Outcome *Outcome             `json:"outcome,omitempty"`
	Error   string               `json:"error,omitempty"`
	Err     error                `json:"-"`
}

// BatchReport collects every quote of a batch; quotes never abort each other
type BatchReport struct {
	Base      string              `json:"base"`
	Model     string              `json:"model"`
	Timeframe contracts.Timeframe `json:"timeframe"`
	Quotes    []QuoteStatus       `json:"quotes"`
}

// Count returns the number of quotes in state st
func (r *BatchReport) Count(st contracts.QuoteState) int {
	n := 0
	for _, q := range r.Quotes {
		if q.Status == st {
			n++
		}
	}
	return n
}

// Service runs daily/weekly one-step forecasts
type Service struct {
	loader SeriesLoader
	models ModelSource
	refs   CurrencyLookup
	store  Store
	logger zerolog.Logger
}

// NewService creates a forecast service
func NewService(loader SeriesLoader, registry ModelSource, refs CurrencyLookup, store Store, log zerolog.Logger) *Service {
	return &Service{
		loader: loader,
		models: registry,
		refs:   refs,
		store:  store,
		logger: log.With().Str("component", "forecast.service").Logger(),
	}
}

// RunDaily forecasts the next business day after the last observed date
func (s *Service) RunDaily(ctx context.Context, base, quote, model string) (*Outcome, error) {
	return s.run(ctx, contracts.TimeframeDaily, base, quote, model)
}

// RunWeekly forecasts the Friday after the last real Friday
func (s *Service) RunWeekly(ctx context.Context, base, quote, model string) (*Outcome, error) {
	return s.run(ctx, contracts.TimeframeWeekly, base, quote, model)
}

// RunDailyBatch runs RunDaily for every quote, skip-and-continue
func (s *Service) RunDailyBatch(ctx context.Context, base string, quotes []string, model string) (*BatchReport, error) {
	return s.batch(ctx, contracts.TimeframeDaily, base, quotes, model)
}

// RunWeeklyBatch runs RunWeekly for every quote, skip-and-continue
func (s *Service) RunWeeklyBatch(ctx context.Context, base string, quotes []string, model string) (*BatchReport, error) {
	return s.batch(ctx, contracts.TimeframeWeekly, base, quotes, model)
}

func (s *Service) batch(ctx context.Context, tf contracts.Timeframe, base string, quotes []string, model string) (*BatchReport, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	model = strings.ToLower(strings.TrimSpace(model))

	// 설정 오류는 배치 전체 중단
	if _, err := s.models.Get(model); err != nil {
		return nil, err
	}
	if _, err := s.refs.GetCurrency(ctx, base); err != nil {
		return nil, fmt.Errorf("base currency %s: %w", base, err)
	}

	report := &BatchReport{Base: base, Model: model, Timeframe: tf, Quotes: make([]QuoteStatus, 0, len(quotes))}
	pipeline := "forecast_" + tf.Label()

	for _, quote := range quotes {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		quote = strings.ToUpper(strings.TrimSpace(quote))

		out, err := s.run(ctx, tf, base, quote, model)
		st := QuoteStatus{Quote: quote, Outcome: out, Status: contracts.QuoteOK}
		switch {
		case err == nil:
		case errors.Is(err, ErrNoData), errors.Is(err, ErrNoFriday):
			st.Status, st.Err, st.Error = contracts.QuoteSkipped, err, err.Error()
			s.logger.Warn().Str("pair", base+"/"+quote).Err(err).Msg("forecast skipped")
		default:
			st.Status, st.Err, st.Error = contracts.QuoteFailed, err, err.Error()
			s.logger.Error().Str("pair", base+"/"+quote).Err(err).Msg("forecast failed")
		}
		metrics.QuoteRuns.WithLabelValues(pipeline, string(st.Status)).Inc()
		report.Quotes = append(report.Quotes, st)
	}

	s.logger.Info().
		Str("timeframe", tf.Label()).
		Str("model", model).
		Int("ok", report.Count(contracts.QuoteOK)).
		Int("skipped", report.Count(contracts.QuoteSkipped)).
		Int("failed", report.Count(contracts.QuoteFailed)).
		Msg("forecast batch finished")
	return report, nil
}

func (s *Service) run(ctx context.Context, tf contracts.Timeframe, base, quote, model string) (*Outcome, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	model = strings.ToLower(strings.TrimSpace(model))

	adapter, err := s.models.Get(model)
	if err != nil {
		return nil, err
	}
	entry, err := s.models.Entry(model)
	if err != nil {
		return nil, err
	}

	req := series.Request{Base: base, Quote: quote, Freq: contracts.FreqDaily, Fill: series.FillNone}
	if tf == contracts.TimeframeWeekly {
		req.Freq = contracts.FreqWeekly
	}
	y, err := s.loader.Load(ctx, req)
	if err != nil {
		return nil, err
	}

	var cutoff, target time.Time
	if tf == contracts.TimeframeWeekly {
		if cutoff, err = WeeklyCutoff(y); err != nil {
			return nil, fmt.Errorf("%s/%s weekly cutoff: %w", base, quote, err)
		}
		target = WeeklyTarget(cutoff)
	} else {
		if cutoff, err = DailyCutoff(y); err != nil {
			return nil, fmt.Errorf("%s/%s daily cutoff: %w", base, quote, err)
		}
		target = DailyTarget(cutoff)
	}

	// 학습 데이터는 cutoff 포함까지만
	train := y.UpTo(cutoff)
	res, err := adapter.Predict(ctx, train, 1, []time.Time{target}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s/%s model %s: %w", base, quote, model, err)
	}
	if err := validatePositive(base, quote, res); err != nil {
		return nil, err
	}

	spec := contracts.NewModelSpec(model, entry.Library, tf, res.Len(), res.Params)
	saved, err := s.store.SaveForecast(ctx, Record{
		Spec:      spec,
		Timeframe: tf,
		Cutoff:    cutoff,
		ModelName: model,
		Base:      base,
		Quote:     quote,
		Result:    res,
	})
	if err != nil {
		return nil, fmt.Errorf("%s/%s save forecast: %w", base, quote, err)
	}
	metrics.ForecastRowsWritten.WithLabelValues(tf.Label(), model).Add(float64(saved.Inserted))

	out := &Outcome{
		Base:         base,
		Quote:        quote,
		Timeframe:    tf,
		Model:        model,
		ModelName:    res.ModelName,
		Cutoff:       cutoff,
		Target:       target,
		Yhat:         res.Yhat()[0],
		TrainSize:    train.Len(),
		RunID:        saved.RunID,
		RowsInserted: saved.Inserted,
	}
	if res.HasInterval() {
		lo, hi := res.Lower()[0], res.Upper()[0]
		out.Lower, out.Upper = &lo, &hi
	}

	s.logger.Info().
		Str("pair", base+"/"+quote).
		Str("tf", tf.Label()).
		Str("cutoff", contracts.FormatDate(cutoff)).
		Str("target", contracts.FormatDate(target)).
		Str("model", res.ModelName).
		Float64("yhat", out.Yhat).
		Int("inserted", saved.Inserted).
		Msg("forecast stored")
	return out, nil
}

// validatePositive rejects non-positive point forecasts before they reach storage
func validatePositive(base, quote string, res *contracts.ForecastResult) error {
	dates := res.TargetDates()
	for i, v := range res.Yhat() {
		if !(v > 0) {
			return &contracts.DataQualityError{Base: base, Quote: quote, Date: dates[i], Field: "yhat", Value: v}
		}
	}
	return nil
}
