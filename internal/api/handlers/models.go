package handlers

import (
	"context"
	"net/http"

	"github.com/wonny/fxlab/internal/contracts"
	"github.com/wonny/fxlab/pkg/logger"
)

// ModelCatalog lists registry state
type ModelCatalog interface {
	Names() []string
	Unavailable() map[string]string
}

// SpecLister lists stored model specs
type SpecLister interface {
	ListModelSpecs(ctx context.Context, tf contracts.Timeframe, activeOnly bool) ([]contracts.ModelSpec, error)
}

// ModelsHandler handles model listing
type ModelsHandler struct {
	registry ModelCatalog
	specs    SpecLister
	logger   *logger.Logger
}

// NewModelsHandler creates a new models handler
func NewModelsHandler(registry ModelCatalog, specs SpecLister, log *logger.Logger) *ModelsHandler {
	return &ModelsHandler{registry: registry, specs: specs, logger: log}
}

// List returns available registry keys, unavailable entries and stored specs
// GET /api/models
func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	tf := contracts.Timeframe("")
	if v := r.URL.Query().Get("timeframe"); v != "" {
		parsed, err := contracts.ParseTimeframe(v)
		if err != nil {
			respondErr(w, err)
			return
		}
		tf = parsed
	}

	specs, err := h.specs.ListModelSpecs(r.Context(), tf, false)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list model specs")
		respondError(w, http.StatusInternalServerError, "failed to list model specs")
		return
	}
	if specs == nil {
		specs = []contracts.ModelSpec{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"available":   h.registry.Names(),
		"unavailable": h.registry.Unavailable(),
		"specs":       specs,
	})
}
