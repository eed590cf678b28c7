package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/fxlab/internal/backtest"
	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/forecast"
	"github.com/wonny/fxlab/internal/models"
	"github.com/wonny/fxlab/internal/overview"
	"github.com/wonny/fxlab/internal/rates"
	"github.com/wonny/fxlab/internal/series"
	"github.com/wonny/fxlab/pkg/logger"
)

func day(s string) time.Time {
	t, err := contracts.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

type fakeCatalog struct{}

func (fakeCatalog) Names() []string                { return []string{"drift", "naive"} }
func (fakeCatalog) Unavailable() map[string]string { return map[string]string{"prophet": "script missing"} }
func (fakeCatalog) Normalize(name string) string {
	if name == "drift" || name == "naive" {
		return name
	}
	return "drift"
}

type fakeSpecs struct{ tf contracts.Timeframe }

func (f *fakeSpecs) ListModelSpecs(ctx context.Context, tf contracts.Timeframe, activeOnly bool) ([]contracts.ModelSpec, error) {
	f.tf = tf
	return []contracts.ModelSpec{contracts.NewModelSpec("naive", contracts.LibraryBaseline, contracts.TimeframeDaily, 1, nil)}, nil
}

func TestModelsHandler_List(t *testing.T) {
	specs := &fakeSpecs{}
	h := NewModelsHandler(fakeCatalog{}, specs, logger.Nop())

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/models?timeframe=weekly", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, []interface{}{"drift", "naive"}, body["available"])
	assert.Equal(t, map[string]interface{}{"prophet": "script missing"}, body["unavailable"])
	assert.Len(t, body["specs"], 1)
	assert.Equal(t, contracts.TimeframeWeekly, specs.tf)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/models?timeframe=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeLoader struct {
	req series.Request
	err error
}

func (f *fakeLoader) Load(ctx context.Context, req series.Request) (contracts.Series, error) {
	f.req = req
	if f.err != nil {
		return contracts.Series{}, f.err
	}
	return contracts.NewSeries(req.Base, req.Quote, req.Freq, []contracts.Point{
		{Date: day("2024-03-01"), Value: 1.08},
		{Date: day("2024-03-04"), Value: 1.09},
		{Date: day("2024-03-05"), Value: 1.10},
	}), nil
}

type fakeBoard struct{ quotes []string }

func (f *fakeBoard) Board(ctx context.Context, base string, quotes []string) []overview.Metrics {
	f.quotes = quotes
	out := make([]overview.Metrics, len(quotes))
	for i, q := range quotes {
		out[i] = overview.Metrics{Base: base, Quote: q}
	}
	return out
}

func TestSeriesHandler_Series(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		err    error
		status int
		points int
	}{
		{name: "full series", url: "/api/series?quote=eur", status: http.StatusOK, points: 3},
		{name: "tail", url: "/api/series?quote=EUR&tail=2&fill=ffill", status: http.StatusOK, points: 2},
		{name: "missing quote", url: "/api/series", status: http.StatusBadRequest},
		{name: "bad freq", url: "/api/series?quote=EUR&freq=M", status: http.StatusBadRequest},
		{name: "bad date", url: "/api/series?quote=EUR&start=03-01-2024", status: http.StatusBadRequest},
		{name: "bad tail", url: "/api/series?quote=EUR&tail=x", status: http.StatusBadRequest},
		{name: "unknown pair", url: "/api/series?quote=EUR", err: contracts.NotFoundf("currency EUR"), status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loader := &fakeLoader{err: tt.err}
			h := NewSeriesHandler(loader, &fakeBoard{}, contracts.DefaultUSDQuotes, logger.Nop())

			rec := httptest.NewRecorder()
			h.Series(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))

			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusOK {
				body := decodeBody(t, rec)
				assert.Equal(t, "USD", body["base"])
				assert.Equal(t, "EUR", body["quote"])
				assert.Len(t, body["points"], tt.points)
			}
		})
	}
}

func TestSeriesHandler_SeriesPassesFilters(t *testing.T) {
	loader := &fakeLoader{}
	h := NewSeriesHandler(loader, &fakeBoard{}, nil, logger.Nop())

	rec := httptest.NewRecorder()
	h.Series(rec, httptest.NewRequest(http.MethodGet, "/api/series?base=eur&quote=gbp&freq=W&start=2024-01-01&end=2024-02-01", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "EUR", loader.req.Base)
	assert.Equal(t, "GBP", loader.req.Quote)
	assert.Equal(t, contracts.FreqWeekly, loader.req.Freq)
	require.NotNil(t, loader.req.Start)
	require.NotNil(t, loader.req.End)
	assert.Equal(t, day("2024-01-01"), *loader.req.Start)
	assert.Equal(t, day("2024-02-01"), *loader.req.End)
}

func TestSeriesHandler_Overview(t *testing.T) {
	board := &fakeBoard{}
	h := NewSeriesHandler(&fakeLoader{}, board, []string{"EUR", "JPY"}, logger.Nop())

	rec := httptest.NewRecorder()
	h.Overview(rec, httptest.NewRequest(http.MethodGet, "/api/overview", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"EUR", "JPY"}, board.quotes)

	rec = httptest.NewRecorder()
	h.Overview(rec, httptest.NewRequest(http.MethodGet, "/api/overview?quotes=gbp,chf", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"GBP", "CHF"}, board.quotes)
	assert.Len(t, decodeBody(t, rec)["pairs"], 2)
}

type fakeForecasts struct {
	tf   contracts.Timeframe
	base string
}

func (f *fakeForecasts) LatestForecasts(ctx context.Context, tf contracts.Timeframe, base string) ([]contracts.ForecastRow, error) {
	f.tf, f.base = tf, base
	return nil, nil
}

func (f *fakeForecasts) ListRuns(ctx context.Context, tf contracts.Timeframe, limit int) ([]contracts.ForecastRun, error) {
	f.tf = tf
	return []contracts.ForecastRun{{ID: 1, Timeframe: contracts.TimeframeWeekly}}, nil
}

func TestForecastHandler(t *testing.T) {
	store := &fakeForecasts{}
	h := NewForecastHandler(store, logger.Nop())

	rec := httptest.NewRecorder()
	h.Latest(rec, httptest.NewRequest(http.MethodGet, "/api/forecasts/latest?timeframe=W", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contracts.TimeframeWeekly, store.tf)
	assert.Equal(t, "USD", store.base)
	assert.Equal(t, []interface{}{}, decodeBody(t, rec)["rows"])

	rec = httptest.NewRecorder()
	h.Runs(rec, httptest.NewRequest(http.MethodGet, "/api/forecasts/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, contracts.Timeframe(""), store.tf)
	assert.Len(t, decodeBody(t, rec)["runs"], 1)
}

type fakeBacktests struct {
	runID uuid.UUID
	quote string
}

func (f *fakeBacktests) ListRuns(ctx context.Context, limit int) ([]contracts.BacktestRun, error) {
	return nil, nil
}

func (f *fakeBacktests) ListMetrics(ctx context.Context, runID uuid.UUID) ([]contracts.BacktestMetric, error) {
	f.runID = runID
	return []contracts.BacktestMetric{{RunID: runID, Base: "USD", Quote: "EUR"}}, nil
}

func (f *fakeBacktests) ListSlices(ctx context.Context, runID uuid.UUID, quote string) ([]backtest.SliceRow, error) {
	f.runID, f.quote = runID, quote
	return nil, nil
}

func TestBacktestHandler(t *testing.T) {
	store := &fakeBacktests{}
	h := NewBacktestHandler(store, logger.Nop())
	r := mux.NewRouter()
	r.HandleFunc("/runs", h.Runs)
	r.HandleFunc("/runs/{id}/metrics", h.Metrics)
	r.HandleFunc("/runs/{id}/slices", h.Slices)

	id := uuid.New()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []interface{}{}, decodeBody(t, rec)["runs"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+id.String()+"/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, id, store.runID)
	assert.Len(t, decodeBody(t, rec)["metrics"], 1)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+id.String()+"/slices?quote=jpy", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "JPY", store.quote)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/not-a-uuid/metrics", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeForecaster struct {
	calls []string
	err   error
}

func (f *fakeForecaster) RunDailyBatch(ctx context.Context, base string, quotes []string, model string) (*forecast.BatchReport, error) {
	f.calls = append(f.calls, "daily:"+model+":"+strings.Join(quotes, ","))
	if f.err != nil {
		return nil, f.err
	}
	return &forecast.BatchReport{Base: base, Model: model, Timeframe: contracts.TimeframeDaily}, nil
}

func (f *fakeForecaster) RunWeeklyBatch(ctx context.Context, base string, quotes []string, model string) (*forecast.BatchReport, error) {
	f.calls = append(f.calls, "weekly:"+model+":"+strings.Join(quotes, ","))
	return &forecast.BatchReport{Base: base, Model: model, Timeframe: contracts.TimeframeWeekly}, nil
}

type fakeBacktester struct{ opts backtest.Options }

func (f *fakeBacktester) Run(ctx context.Context, opts backtest.Options) (*backtest.RunReport, error) {
	f.opts = opts
	return &backtest.RunReport{ModelCode: opts.Model + "-daily", Timeframe: opts.Timeframe}, nil
}

type fakeIngestor struct{ calls []string }

func (f *fakeIngestor) Daily(ctx context.Context, base string, quotes []string) (*rates.Result, error) {
	f.calls = append(f.calls, "daily")
	return &rates.Result{Base: base, UpToDate: true}, nil
}

func (f *fakeIngestor) Backfill(ctx context.Context, years int, base string, quotes []string) (*rates.Result, error) {
	f.calls = append(f.calls, "backfill:"+strconv.Itoa(years))
	return &rates.Result{Base: base}, nil
}

func (f *fakeIngestor) Range(ctx context.Context, start, end time.Time, base string, quotes []string) (*rates.Result, error) {
	f.calls = append(f.calls, "range:"+contracts.FormatDate(start)+".."+contracts.FormatDate(end))
	return &rates.Result{Base: base, Start: start, End: end}, nil
}

func (f *fakeIngestor) Day(ctx context.Context, d time.Time, base string, quotes []string) (*rates.Result, error) {
	f.calls = append(f.calls, "day:"+contracts.FormatDate(d))
	return &rates.Result{Base: base, Start: d, End: d}, nil
}

func newOps() (*OpsHandler, *fakeForecaster, *fakeBacktester, *fakeIngestor) {
	f, b, in := &fakeForecaster{}, &fakeBacktester{}, &fakeIngestor{}
	return NewOpsHandler(f, b, in, fakeCatalog{}, []string{"EUR", "GBP"}, logger.Nop()), f, b, in
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h(rec, req)
	return rec
}

func TestOpsHandler_Forecast(t *testing.T) {
	h, f, _, _ := newOps()

	rec := post(h.Forecast, `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = post(h.Forecast, `{"timeframe":"weekly","model":"naive","quotes":"jpy"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"daily:drift:EUR,GBP", "weekly:naive:JPY"}, f.calls)

	assert.Equal(t, http.StatusBadRequest, post(h.Forecast, `{"timeframe":"M"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(h.Forecast, `{bad json`).Code)

	f.err = &models.ModelNotFoundError{Name: "x"}
	assert.Equal(t, http.StatusBadRequest, post(h.Forecast, `{}`).Code)
}

func TestOpsHandler_Backtest(t *testing.T) {
	h, _, b, _ := newOps()

	rec := post(h.Backtest, `{"model":"naive","window":30,"horizon":5,"timeframe":"W","params":{"window":3}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "naive", b.opts.Model)
	assert.Equal(t, 30, b.opts.Window)
	assert.Equal(t, 5, b.opts.Horizon)
	assert.Equal(t, contracts.TimeframeWeekly, b.opts.Timeframe)
	assert.Equal(t, "USD", b.opts.Base)
	assert.Equal(t, []string{"EUR", "GBP"}, b.opts.Quotes)
	assert.Equal(t, 3.0, b.opts.Params["window"])

	assert.Equal(t, http.StatusBadRequest, post(h.Backtest, `{"window":-1}`).Code)
}

func TestOpsHandler_Ingest(t *testing.T) {
	tests := []struct {
		body   string
		status int
		call   string
	}{
		{body: `{}`, status: http.StatusOK, call: "daily"},
		{body: `{"mode":"monthly"}`, status: http.StatusOK, call: "backfill:10"},
		{body: `{"mode":"monthly","years":2}`, status: http.StatusOK, call: "backfill:2"},
		{body: `{"mode":"range","start":"2024-01-01","end":"2024-03-31"}`, status: http.StatusOK, call: "range:2024-01-01..2024-03-31"},
		{body: `{"mode":"day","date":"2024-03-01"}`, status: http.StatusOK, call: "day:2024-03-01"},
		{body: `{"mode":"range","start":"2024-01-01"}`, status: http.StatusBadRequest},
		{body: `{"mode":"weekly"}`, status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			h, _, _, in := newOps()
			rec := post(h.Ingest, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.call != "" {
				assert.Equal(t, []string{tt.call}, in.calls)
			} else {
				assert.Empty(t, in.calls)
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(contracts.ErrInvalidParam))
	assert.Equal(t, http.StatusNotFound, statusFor(contracts.NotFoundf("run")))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&contracts.DataQualityError{Field: "rate"}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}
