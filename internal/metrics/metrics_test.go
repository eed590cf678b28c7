package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware_LabelsRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc("/api/backtests/runs/{id}/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Use(Middleware)

	before := counterValue(t, httpRequests.WithLabelValues("GET", "/api/backtests/runs/{id}/metrics", "404"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/backtests/runs/abc/metrics", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	after := counterValue(t, httpRequests.WithLabelValues("GET", "/api/backtests/runs/{id}/metrics", "404"))
	assert.Equal(t, before+1, after)
}

func TestObserveHelpers(t *testing.T) {
	before := counterValue(t, ModelPredictions.WithLabelValues("naive", "error"))
	ObservePrediction("naive", time.Millisecond, errors.New("boom"))
	assert.Equal(t, before+1, counterValue(t, ModelPredictions.WithLabelValues("naive", "error")))

	before = counterValue(t, JobRuns.WithLabelValues("fx_daily_ops", "true"))
	RecordJobRun("fx_daily_ops", true)
	assert.Equal(t, before+1, counterValue(t, JobRuns.WithLabelValues("fx_daily_ops", "true")))
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write counter: %v", err)
	}
	return m.GetCounter().GetValue()
}
