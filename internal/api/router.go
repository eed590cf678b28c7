package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/fxlab/internal/api/handlers"
	"github.com/wonny/fxlab/internal/metrics"
	"github.com/wonny/fxlab/pkg/logger"
)

// Handlers groups every endpoint handler the router mounts
type Handlers struct {
	Models   *handlers.ModelsHandler
	Series   *handlers.SeriesHandler
	Forecast *handlers.ForecastHandler
	Backtest *handlers.BacktestHandler
	Ops      *handlers.OpsHandler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, log *logger.Logger, withMetrics bool) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")
	if withMetrics {
		r.Handle("/metrics", metrics.Handler()).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()

	// Read endpoints
	api.HandleFunc("/models", h.Models.List).Methods("GET")
	api.HandleFunc("/series", h.Series.Series).Methods("GET")
	api.HandleFunc("/overview", h.Series.Overview).Methods("GET")
	api.HandleFunc("/forecasts/latest", h.Forecast.Latest).Methods("GET")
	api.HandleFunc("/forecasts/runs", h.Forecast.Runs).Methods("GET")
	api.HandleFunc("/backtests/runs", h.Backtest.Runs).Methods("GET")
	api.HandleFunc("/backtests/runs/{id}/metrics", h.Backtest.Metrics).Methods("GET")
	api.HandleFunc("/backtests/runs/{id}/slices", h.Backtest.Slices).Methods("GET")

	// Ops endpoints
	api.HandleFunc("/ops/forecast", h.Ops.Forecast).Methods("POST")
	api.HandleFunc("/ops/backtest", h.Ops.Backtest).Methods("POST")
	api.HandleFunc("/ops/ingest", h.Ops.Ingest).Methods("POST")

	// Apply middleware
	r.Use(metrics.Middleware)
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "fxlab-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
