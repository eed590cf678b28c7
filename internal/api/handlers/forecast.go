package handlers

import (
	"context"
	"net/http"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/pkg/logger"
)

// ForecastReader reads stored forecasts
type ForecastReader interface {
	LatestForecasts(ctx context.Context, tf contracts.Timeframe, base string) ([]contracts.ForecastRow, error)
	ListRuns(ctx context.Context, tf contracts.Timeframe, limit int) ([]contracts.ForecastRun, error)
}

// ForecastHandler handles stored forecast queries
type ForecastHandler struct {
	store  ForecastReader
	logger *logger.Logger
}

// NewForecastHandler creates a new forecast handler
func NewForecastHandler(store ForecastReader, log *logger.Logger) *ForecastHandler {
	return &ForecastHandler{store: store, logger: log}
}

// Latest returns the rows of the most recent cutoff
// GET /api/forecasts/latest?timeframe=D&base=USD
func (h *ForecastHandler) Latest(w http.ResponseWriter, r *http.Request) {
	tf, err := queryTimeframe(r, contracts.TimeframeDaily)
	if err != nil {
		respondErr(w, err)
		return
	}
	base, err := queryCode(r, "base", "USD")
	if err != nil {
		respondErr(w, err)
		return
	}

	rows, err := h.store.LatestForecasts(r.Context(), tf, base)
	if err != nil {
		h.logger.WithError(err).Error("Failed to load latest forecasts")
		respondError(w, http.StatusInternalServerError, "failed to load forecasts")
		return
	}
	if rows == nil {
		rows = []contracts.ForecastRow{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"timeframe": tf,
		"base":      base,
		"rows":      rows,
	})
}

// Runs lists recent forecast runs
// GET /api/forecasts/runs?timeframe=W&limit=20
func (h *ForecastHandler) Runs(w http.ResponseWriter, r *http.Request) {
	tf := contracts.Timeframe("")
	if r.URL.Query().Get("timeframe") != "" {
		parsed, err := queryTimeframe(r, contracts.TimeframeDaily)
		if err != nil {
			respondErr(w, err)
			return
		}
		tf = parsed
	}
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		respondErr(w, err)
		return
	}

	runs, err := h.store.ListRuns(r.Context(), tf, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list forecast runs")
		respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []contracts.ForecastRun{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}
