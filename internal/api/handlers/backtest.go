package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/wonny/fxlab/internal/backtest"
	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/pkg/logger"
)

// BacktestReader reads stored backtest runs
type BacktestReader interface {
	ListRuns(ctx context.Context, limit int) ([]contracts.BacktestRun, error)
	ListMetrics(ctx context.Context, runID uuid.UUID) ([]contracts.BacktestMetric, error)
	ListSlices(ctx context.Context, runID uuid.UUID, quote string) ([]backtest.SliceRow, error)
}

// BacktestHandler handles backtest queries
type BacktestHandler struct {
	store  BacktestReader
	logger *logger.Logger
}

// NewBacktestHandler creates a new backtest handler
func NewBacktestHandler(store BacktestReader, log *logger.Logger) *BacktestHandler {
	return &BacktestHandler{store: store, logger: log}
}

// Runs lists recent backtest runs
// GET /api/backtests/runs?limit=20
func (h *BacktestHandler) Runs(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		respondErr(w, err)
		return
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list backtest runs")
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []contracts.BacktestRun{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// Metrics returns per-quote metrics of one run
// GET /api/backtests/runs/{id}/metrics
func (h *BacktestHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDParam(w, r)
	if !ok {
		return
	}

	rows, err := h.store.ListMetrics(r.Context(), runID)
	if err != nil {
		h.logger.WithError(err).WithField("run_id", runID.String()).Error("Failed to list backtest metrics")
		respondError(w, http.StatusInternalServerError, "failed to list metrics")
		return
	}
	if rows == nil {
		rows = []contracts.BacktestMetric{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":  runID,
		"metrics": rows,
	})
}

// Slices returns the scored slices of one run, optionally for a single quote
// GET /api/backtests/runs/{id}/slices?quote=EUR
func (h *BacktestHandler) Slices(w http.ResponseWriter, r *http.Request) {
	runID, ok := runIDParam(w, r)
	if !ok {
		return
	}
	quote := ""
	if r.URL.Query().Get("quote") != "" {
		q, err := queryCode(r, "quote", "")
		if err != nil {
			respondErr(w, err)
			return
		}
		quote = q
	}

	rows, err := h.store.ListSlices(r.Context(), runID, quote)
	if err != nil {
		h.logger.WithError(err).WithField("run_id", runID.String()).Error("Failed to list backtest slices")
		respondError(w, http.StatusInternalServerError, "failed to list slices")
		return
	}
	if rows == nil {
		rows = []backtest.SliceRow{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"run_id": runID,
		"slices": rows,
	})
}

func runIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid run id")
		return uuid.Nil, false
	}
	return id, true
}
