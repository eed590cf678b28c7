package handlers

import (
	"context"
	"net/http"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/internal/overview"
	"github.com/wonny/fxlab/internal/series"
	"github.com/wonny/fxlab/pkg/logger"
)

// SeriesLoader loads calendar-normalised series
type SeriesLoader interface {
	Load(ctx context.Context, req series.Request) (contracts.Series, error)
}

// OverviewBoard computes pair summaries
type OverviewBoard interface {
	Board(ctx context.Context, base string, quotes []string) []overview.Metrics
}

// SeriesHandler serves series and overview data
type SeriesHandler struct {
	loader   SeriesLoader
	board    OverviewBoard
	defaults []string
	logger   *logger.Logger
}

// NewSeriesHandler creates a new series handler; defaults are the quotes used when none are given
func NewSeriesHandler(loader SeriesLoader, board OverviewBoard, defaults []string, log *logger.Logger) *SeriesHandler {
	return &SeriesHandler{loader: loader, board: board, defaults: defaults, logger: log}
}

// Series returns one pair's series
// GET /api/series?base=USD&quote=EUR&freq=D&fill=none&start=&end=&tail=
func (h *SeriesHandler) Series(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	base, err := queryCode(r, "base", "USD")
	if err != nil {
		respondErr(w, err)
		return
	}
	quote, err := queryCode(r, "quote", "")
	if err != nil {
		respondErr(w, err)
		return
	}
	freq, err := contracts.ParseFrequency(defaultString(q.Get("freq"), "D"))
	if err != nil {
		respondErr(w, err)
		return
	}
	fill, err := series.ParseFill(q.Get("fill"))
	if err != nil {
		respondErr(w, err)
		return
	}
	start, err := queryDate(r, "start")
	if err != nil {
		respondErr(w, err)
		return
	}
	end, err := queryDate(r, "end")
	if err != nil {
		respondErr(w, err)
		return
	}
	tail, err := queryInt(r, "tail", 0)
	if err != nil {
		respondErr(w, err)
		return
	}

	s, err := h.loader.Load(r.Context(), series.Request{
		Base: base, Quote: quote, Freq: freq, Fill: fill, Start: start, End: end,
	})
	if err != nil {
		respondErr(w, err)
		return
	}
	if tail > 0 {
		s = s.Tail(tail)
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"base":   s.Base,
		"quote":  s.Quote,
		"freq":   s.Freq,
		"points": s.Points(),
	})
}

// Overview returns summary metrics for each quote
// GET /api/overview?base=USD&quotes=EUR,GBP
func (h *SeriesHandler) Overview(w http.ResponseWriter, r *http.Request) {
	base, err := queryCode(r, "base", "USD")
	if err != nil {
		respondErr(w, err)
		return
	}
	quotes := quoteList(r.URL.Query().Get("quotes"), h.defaults)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"base":  base,
		"pairs": h.board.Board(r.Context(), base, quotes),
	})
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
