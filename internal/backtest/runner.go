package backtest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/metrics"
	"github.com/wonny/fxlab/internal/models"
	"github.com/wonny/fxlab/internal/series"
)

const (
	// DefaultWindow 기본 평가 대상 개수
	DefaultWindow = 60
	// DefaultHorizon 기본 예측 step
	DefaultHorizon = 1
)

// ErrTooShort marks a quote whose series is shorter than window + horizon
var ErrTooShort = errors.New("series shorter than window + horizon")

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

// Store persists backtest runs, slices and metrics
type Store interface {
	CreateRun(ctx context.Context, spec contracts.ModelSpec, run contracts.BacktestRun) error
	SaveQuote(ctx context.Context, runID uuid.UUID, base, quote string, slices []contracts.BacktestSlice, m contracts.Metrics) (int, error)
	UpdateWindow(ctx context.Context, runID uuid.UUID, start, end time.Time) error
}

// Options describes one backtest run across quotes
type Options struct {
	Base      string
	Quotes    []string
	Model     string
	Timeframe contracts.Timeframe
	Window    int
	Horizon   int
	Params    models.Params
}

func (o Options) withDefaults() (Options, error) {
	o.Base = strings.ToUpper(strings.TrimSpace(o.Base))
	o.Model = strings.ToLower(strings.TrimSpace(o.Model))
	switch o.Timeframe {
	case "":
		o.Timeframe = contracts.TimeframeDaily
	case contracts.TimeframeDaily, contracts.TimeframeWeekly:
	default:
		return o, fmt.Errorf("%w: backtest timeframe %q (want D or W)", contracts.ErrInvalidParam, string(o.Timeframe))
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.Horizon <= 0 {
		o.Horizon = DefaultHorizon
	}
	return o, nil
}

// QuoteReport is the per-quote line of a run report
type QuoteReport struct {
	Quote    string                    `json:"quote"`
	Status   contracts.QuoteState      `json:"status"`
	Metrics  *contracts.BacktestMetric `json:"metrics,omitempty"`
	Slices   int                       `json:"slices"`
	Inserted int                       `json:"inserted"`
	Error    string                    `json:"error,omitempty"`
	Err      error                     `json:"-"`
}

// RunReport summarises a finished run
type RunReport struct {
	RunID       uuid.UUID           `json:"run_id"`
	ModelCode   string              `json:"model_code"`
	Timeframe   contracts.Timeframe `json:"timeframe"`
	WindowStart time.Time           `json:"window_start"`
	WindowEnd   time.Time           `json:"window_end"`
	Quotes      []QuoteReport       `json:"quotes"`
}

// Count returns the number of quotes in state st
func (r *RunReport) Count(st contracts.QuoteState) int {
	n := 0
	for _, q := range r.Quotes {
		if q.Status == st {
			n++
		}
	}
	return n
}

// Runner persists walk-forward backtests
type Runner struct {
	loader SeriesLoader
	models ModelSource
	refs   CurrencyLookup
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

// NewRunner creates a backtest runner
func NewRunner(loader SeriesLoader, registry ModelSource, refs CurrencyLookup, store Store, log zerolog.Logger) *Runner {
	return &Runner{
		loader: loader,
		models: registry,
		refs:   refs,
		store:  store,
		logger: log.With().Str("component", "backtest.runner").Logger(),
		now:    time.Now,
	}
}

// Run evaluates every quote and stores one run; quotes never abort each other
func (r *Runner) Run(ctx context.Context, opts Options) (*RunReport, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}

	// 설정 오류는 run 생성 전에 중단
	adapter, err := r.models.Get(opts.Model)
	if err != nil {
		return nil, err
	}
	entry, err := r.models.Entry(opts.Model)
	if err != nil {
		return nil, err
	}
	if _, err := r.refs.GetCurrency(ctx, opts.Base); err != nil {
		return nil, fmt.Errorf("base currency %s: %w", opts.Base, err)
	}

	spec := contracts.NewModelSpec(opts.Model, entry.Library, opts.Timeframe, opts.Horizon, nil)
	today := contracts.DateOf(r.now())
	run := contracts.BacktestRun{
		ID:          uuid.New(),
		ModelCode:   spec.Code,
		Timeframe:   opts.Timeframe,
		HorizonDays: opts.Horizon,
		WindowStart: today,
		WindowEnd:   today,
		Notes:       fmt.Sprintf("window=%d; horizon=%d; model=%s", opts.Window, opts.Horizon, opts.Model),
	}
	if err := r.store.CreateRun(ctx, spec, run); err != nil {
		return nil, fmt.Errorf("create backtest run: %w", err)
	}

	report := &RunReport{
		RunID:       run.ID,
		ModelCode:   spec.Code,
		Timeframe:   opts.Timeframe,
		WindowStart: today,
		WindowEnd:   today,
		Quotes:      make([]QuoteReport, 0, len(opts.Quotes)),
	}
	pipeline := "backtest_" + opts.Timeframe.Label()

	var first, last time.Time
	for _, quote := range opts.Quotes {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		quote = strings.ToUpper(strings.TrimSpace(quote))

		qr, eval := r.runQuote(ctx, run.ID, adapter, opts, quote)
		if eval != nil {
			for _, s := range eval.Slices {
				if first.IsZero() || s.Date.Before(first) {
					first = s.Date
				}
				if s.Date.After(last) {
					last = s.Date
				}
			}
		}
		metrics.QuoteRuns.WithLabelValues(pipeline, string(qr.Status)).Inc()
		report.Quotes = append(report.Quotes, qr)
	}

	// 실제 생성된 slice 기준으로 window 갱신
	if !first.IsZero() {
		if err := r.store.UpdateWindow(ctx, run.ID, first, last); err != nil {
			return report, fmt.Errorf("update backtest window: %w", err)
		}
		report.WindowStart, report.WindowEnd = first, last
	}

	r.logger.Info().
		Str("run_id", run.ID.String()).
		Str("model", spec.Code).
		Int("window", opts.Window).
		Int("horizon", opts.Horizon).
		Int("ok", report.Count(contracts.QuoteOK)).
		Int("skipped", report.Count(contracts.QuoteSkipped)).
		Int("failed", report.Count(contracts.QuoteFailed)).
		Msg("backtest run finished")
	return report, nil
}

func (r *Runner) runQuote(ctx context.Context, runID uuid.UUID, adapter models.Adapter, opts Options, quote string) (QuoteReport, *Evaluation) {
	qr := QuoteReport{Quote: quote, Status: contracts.QuoteOK}
	pair := opts.Base + "/" + quote
	fail := func(st contracts.QuoteState, err error) (QuoteReport, *Evaluation) {
		qr.Status, qr.Err, qr.Error = st, err, err.Error()
		ev := r.logger.Error()
		if st == contracts.QuoteSkipped {
			ev = r.logger.Warn()
		}
		ev.Str("pair", pair).Err(err).Msg("backtest quote " + string(st))
		return qr, nil
	}

	req := series.Request{Base: opts.Base, Quote: quote, Freq: contracts.FreqDaily, Fill: series.FillNone}
	if opts.Timeframe == contracts.TimeframeWeekly {
		req.Freq = contracts.FreqWeekly
	}
	y, err := r.loader.Load(ctx, req)
	if err != nil {
		return fail(contracts.QuoteFailed, err)
	}
	if y.Len() < opts.Window+opts.Horizon {
		return fail(contracts.QuoteSkipped, fmt.Errorf("%s: %d points: %w", pair, y.Len(), ErrTooShort))
	}

	eval, err := Evaluate(ctx, y, adapter, Config{Window: opts.Window, Horizon: opts.Horizon, Params: opts.Params})
	if err != nil {
		return fail(contracts.QuoteFailed, err)
	}
	for _, s := range eval.Slices {
		if err := s.Validate(opts.Base, quote); err != nil {
			return fail(contracts.QuoteFailed, err)
		}
	}

	inserted, err := r.store.SaveQuote(ctx, runID, opts.Base, quote, eval.Slices, eval.Metrics)
	if err != nil {
		return fail(contracts.QuoteFailed, fmt.Errorf("%s save backtest: %w", pair, err))
	}
	metrics.BacktestSlices.WithLabelValues(opts.Timeframe.Label(), opts.Model).Add(float64(inserted))

	m := eval.Metrics
	row := contracts.NewBacktestMetric(runID, opts.Base, quote, m)
	qr.Metrics = &row
	qr.Slices = len(eval.Slices)
	qr.Inserted = inserted

	r.logger.Info().
		Str("pair", pair).
		Int("n", m.N).
		Float64("mae", m.MAE).
		Float64("rmse", m.RMSE).
		Float64("mape", m.MAPE).
		Msg("backtest quote evaluated")
	return qr, eval
}
