package backtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/models"
	"github.com/wonny/fxlab/internal/series"
)

type fakeLoader struct {
	series map[string]contracts.Series
	err    map[string]error
	reqs   []series.Request
}

func (f *fakeLoader) Load(ctx context.Context, req series.Request) (contracts.Series, error) {
	f.reqs = append(f.reqs, req)
	if err := f.err[req.Quote]; err != nil {
		return contracts.Series{}, err
	}
	return f.series[req.Quote], nil
}

type fakeRefs map[string]bool

func (f fakeRefs) GetCurrency(ctx context.Context, code string) (*contracts.Currency, error) {
	if !f[code] {
		return nil, contracts.NotFoundf("currency %s", code)
	}
	return &contracts.Currency{Code: code}, nil
}

type savedQuote struct {
	quote   string
	slices  []contracts.BacktestSlice
	metrics contracts.Metrics
}

type fakeStore struct {
	spec   *contracts.ModelSpec
	run    *contracts.BacktestRun
	saved  []savedQuote
	window [2]time.Time
}

func (f *fakeStore) CreateRun(ctx context.Context, spec contracts.ModelSpec, run contracts.BacktestRun) error {
	f.spec, f.run = &spec, &run
	return nil
}

func (f *fakeStore) SaveQuote(ctx context.Context, runID uuid.UUID, base, quote string, slices []contracts.BacktestSlice, m contracts.Metrics) (int, error) {
	f.saved = append(f.saved, savedQuote{quote: quote, slices: slices, metrics: m})
	return len(slices), nil
}

func (f *fakeStore) UpdateWindow(ctx context.Context, runID uuid.UUID, start, end time.Time) error {
	f.window = [2]time.Time{start, end}
	return nil
}

func newTestRunner(loader *fakeLoader, store *fakeStore) *Runner {
	reg := models.NewRegistry(models.BuiltinEntries(), zerolog.Nop())
	refs := fakeRefs{"USD": true, "EUR": true, "GBP": true, "JPY": true, "CHF": true}
	r := NewRunner(loader, reg, refs, store, zerolog.Nop())
	r.now = func() time.Time { return time.Date(2024, 6, 3, 15, 4, 5, 0, time.UTC) }
	return r
}

func TestRunner_Run(t *testing.T) {
	loader := &fakeLoader{
		series: map[string]contracts.Series{
			"EUR": businessSeries("2024-01-01", 1.10, 1.12, 1.11, 1.13, 1.14),
			"GBP": businessSeries("2024-01-01", 0.79, 0.80),
			"CHF": businessSeries("2024-01-08", 0.90, 0.91, 0.92, 0.93, 0.94),
		},
		err: map[string]error{"JPY": errors.New("connection reset")},
	}
	store := &fakeStore{}

	report, err := newTestRunner(loader, store).Run(context.Background(), Options{
		Base:   "usd",
		Quotes: []string{"eur", "GBP", "JPY", "CHF"},
		Model:  "Naive",
		Window: 3,
	})
	require.NoError(t, err)

	require.NotNil(t, store.run)
	assert.Equal(t, "naive-daily", store.spec.Code)
	assert.Equal(t, contracts.LibraryBaseline, store.spec.Library)
	assert.Equal(t, "window=3; horizon=1; model=naive", store.run.Notes)
	assert.Equal(t, day("2024-06-03"), store.run.WindowStart, "provisional window is today")
	assert.Equal(t, store.run.ID, report.RunID)

	require.Len(t, report.Quotes, 4)
	assert.Equal(t, contracts.QuoteOK, report.Quotes[0].Status)
	assert.Equal(t, 3, report.Quotes[0].Slices)
	require.NotNil(t, report.Quotes[0].Metrics)
	assert.InDelta(t, 0.04/3, *report.Quotes[0].Metrics.MAE, 1e-9)

	assert.Equal(t, contracts.QuoteSkipped, report.Quotes[1].Status)
	assert.ErrorIs(t, report.Quotes[1].Err, ErrTooShort)
	assert.Equal(t, contracts.QuoteFailed, report.Quotes[2].Status)
	assert.Equal(t, contracts.QuoteOK, report.Quotes[3].Status)

	require.Len(t, store.saved, 2)
	assert.Equal(t, "EUR", store.saved[0].quote)
	assert.Equal(t, "CHF", store.saved[1].quote)

	// EUR 2024-01-03..05, CHF 2024-01-10..12
	assert.Equal(t, [2]time.Time{day("2024-01-03"), day("2024-01-12")}, store.window)
	assert.Equal(t, day("2024-01-03"), report.WindowStart)
	assert.Equal(t, day("2024-01-12"), report.WindowEnd)

	for _, req := range loader.reqs {
		assert.Equal(t, contracts.FreqDaily, req.Freq)
		assert.Equal(t, series.FillNone, req.Fill)
	}
}

func TestRunner_WeeklyUsesStrictFridays(t *testing.T) {
	loader := &fakeLoader{}
	store := &fakeStore{}

	report, err := newTestRunner(loader, store).Run(context.Background(), Options{
		Base: "USD", Quotes: []string{"EUR"}, Model: "drift", Timeframe: contracts.TimeframeWeekly,
	})
	require.NoError(t, err)

	require.Len(t, loader.reqs, 1)
	assert.Equal(t, contracts.FreqWeekly, loader.reqs[0].Freq)
	assert.Equal(t, "drift-weekly", store.spec.Code)
	assert.Equal(t, "window=60; horizon=1; model=drift", store.run.Notes)
	assert.Equal(t, contracts.QuoteSkipped, report.Quotes[0].Status)
	assert.True(t, store.window[0].IsZero(), "no slices, window untouched")
}

func TestRunner_NonPositiveRatesFailQuote(t *testing.T) {
	loader := &fakeLoader{series: map[string]contracts.Series{
		"EUR": businessSeries("2024-01-01", 1.1, 1.2, 0, 1.3),
	}}
	store := &fakeStore{}

	report, err := newTestRunner(loader, store).Run(context.Background(), Options{
		Base: "USD", Quotes: []string{"EUR"}, Model: "naive", Window: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.QuoteFailed, report.Quotes[0].Status)
	assert.ErrorIs(t, report.Quotes[0].Err, contracts.ErrDataQuality)
	assert.Empty(t, store.saved)
}

func TestRunner_ConfigurationErrorsAbort(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"unknown model", Options{Base: "USD", Quotes: []string{"EUR"}, Model: "prophet"}, models.ErrModelNotFound},
		{"unknown base", Options{Base: "XXX", Quotes: []string{"EUR"}, Model: "naive"}, contracts.ErrNotFound},
		{"monthly timeframe", Options{Base: "USD", Quotes: []string{"EUR"}, Model: "naive", Timeframe: contracts.TimeframeMonthly}, contracts.ErrInvalidParam},
		{"unknown timeframe", Options{Base: "USD", Quotes: []string{"EUR"}, Model: "naive", Timeframe: "Q"}, contracts.ErrInvalidParam},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := &fakeLoader{}
			store := &fakeStore{}
			_, err := newTestRunner(loader, store).Run(context.Background(), tt.opts)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, store.run)
			assert.Empty(t, loader.reqs)
		})
	}
}
