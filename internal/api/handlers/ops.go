package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wonny/fxlab/internal/backtest"
	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/forecast"
	"github.com/wonny/fxlab/internal/models"
	"github.com/wonny/fxlab/internal/rates"
	"github.com/wonny/fxlab/pkg/logger"
)

// Forecaster runs forecast batches
type Forecaster interface {
	RunDailyBatch(ctx context.Context, base string, quotes []string, model string) (*forecast.BatchReport, error)
	RunWeeklyBatch(ctx context.Context, base string, quotes []string, model string) (*forecast.BatchReport, error)
}

// Backtester runs rolling-origin backtests
type Backtester interface {
	Run(ctx context.Context, opts backtest.Options) (*backtest.RunReport, error)
}

// Ingestor pulls rates from the source
type Ingestor interface {
	Daily(ctx context.Context, base string, quotes []string) (*rates.Result, error)
	Backfill(ctx context.Context, years int, base string, quotes []string) (*rates.Result, error)
	Range(ctx context.Context, start, end time.Time, base string, quotes []string) (*rates.Result, error)
	Day(ctx context.Context, d time.Time, base string, quotes []string) (*rates.Result, error)
}

// ModelResolver maps a requested model name onto a registry key
type ModelResolver interface {
	Normalize(name string) string
}

// OpsRequest is the JSON body accepted by every ops endpoint
type OpsRequest struct {
	Base      string                 `json:"base"`
	Quotes    string                 `json:"quotes"`
	Model     string                 `json:"model"`
	Timeframe string                 `json:"timeframe"`
	Window    int                    `json:"window"`
	Horizon   int                    `json:"horizon"`
	Params    map[string]interface{} `json:"params"`

	// ingest only
	Mode  string `json:"mode"`
	Years int    `json:"years"`
	Start string `json:"start"`
	End   string `json:"end"`
	Date  string `json:"date"`
}

// OpsHandler triggers forecast, backtest and ingest runs
type OpsHandler struct {
	forecaster Forecaster
	backtester Backtester
	ingestor   Ingestor
	models     ModelResolver
	defaults   []string
	logger     *logger.Logger
}

// NewOpsHandler creates a new ops handler
func NewOpsHandler(f Forecaster, b Backtester, in Ingestor, m ModelResolver, defaults []string, log *logger.Logger) *OpsHandler {
	return &OpsHandler{
		forecaster: f,
		backtester: b,
		ingestor:   in,
		models:     m,
		defaults:   defaults,
		logger:     log,
	}
}

// Forecast runs one forecast batch
// POST /api/ops/forecast
func (h *OpsHandler) Forecast(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	tf, err := timeframeOf(req.Timeframe)
	if err != nil {
		respondErr(w, err)
		return
	}
	model := h.models.Normalize(req.Model)
	quotes := quoteList(req.Quotes, h.defaults)

	var report *forecast.BatchReport
	if tf == contracts.TimeframeWeekly {
		report, err = h.forecaster.RunWeeklyBatch(r.Context(), req.Base, quotes, model)
	} else {
		report, err = h.forecaster.RunDailyBatch(r.Context(), req.Base, quotes, model)
	}
	if err != nil {
		h.logger.WithError(err).WithField("model", model).Warn("Forecast batch rejected")
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Backtest runs one backtest
// POST /api/ops/backtest
func (h *OpsHandler) Backtest(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	tf, err := timeframeOf(req.Timeframe)
	if err != nil {
		respondErr(w, err)
		return
	}
	if req.Window < 0 || req.Horizon < 0 {
		respondError(w, http.StatusBadRequest, "window and horizon must be positive")
		return
	}

	report, err := h.backtester.Run(r.Context(), backtest.Options{
		Base:      req.Base,
		Quotes:    quoteList(req.Quotes, h.defaults),
		Model:     h.models.Normalize(req.Model),
		Timeframe: tf,
		Window:    req.Window,
		Horizon:   req.Horizon,
		Params:    models.Params(req.Params),
	})
	if err != nil {
		h.logger.WithError(err).Warn("Backtest rejected")
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Ingest pulls rates in the requested mode (daily, monthly, range, day)
// POST /api/ops/ingest
func (h *OpsHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decode(w, r)
	if !ok {
		return
	}
	quotes := quoteList(req.Quotes, h.defaults)
	ctx := r.Context()

	var (
		res *rates.Result
		err error
	)
	switch strings.ToLower(strings.TrimSpace(req.Mode)) {
	case "", "daily":
		res, err = h.ingestor.Daily(ctx, req.Base, quotes)
	case "monthly", "backfill":
		years := req.Years
		if years <= 0 {
			years = rates.DefaultBackfillYears
		}
		res, err = h.ingestor.Backfill(ctx, years, req.Base, quotes)
	case "range":
		var start, end time.Time
		if start, err = contracts.ParseDate(req.Start); err == nil {
			if end, err = contracts.ParseDate(req.End); err == nil {
				res, err = h.ingestor.Range(ctx, start, end, req.Base, quotes)
			}
		}
	case "day":
		var d time.Time
		if d, err = contracts.ParseDate(req.Date); err == nil {
			res, err = h.ingestor.Day(ctx, d, req.Base, quotes)
		}
	default:
		err = fmt.Errorf("%w: unknown ingest mode %q", contracts.ErrInvalidParam, req.Mode)
	}
	if err != nil {
		h.logger.WithError(err).WithField("mode", req.Mode).Error("Ingest failed")
		respondErr(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *OpsHandler) decode(w http.ResponseWriter, r *http.Request) (OpsRequest, bool) {
	var req OpsRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return req, false
		}
	}
	if req.Base == "" {
		req.Base = "USD"
	}
	return req, true
}

func timeframeOf(v string) (contracts.Timeframe, error) {
	if v == "" {
		return contracts.TimeframeDaily, nil
	}
	tf, err := contracts.ParseTimeframe(v)
	if err != nil {
		return "", err
	}
	if tf == contracts.TimeframeMonthly {
		return "", fmt.Errorf("%w: timeframe must be D or W", contracts.ErrInvalidParam)
	}
	return tf, nil
}
