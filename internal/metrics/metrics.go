package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the fxlab collectors
	Registry = prometheus.NewRegistry()

	factory = promauto.With(Registry)

	ModelPredictions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxlab_model_predictions_total",
			Help: "Total model predict calls",
		},
		[]string{"model", "status"},
	)

	ModelPredictLatency = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fxlab_model_predict_latency_seconds",
			Help:    "Model predict latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"model"},
	)

	ForecastRowsWritten = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxlab_forecast_rows_written_total",
			Help: "Forecast rows inserted",
		},
		[]string{"timeframe", "model"},
	)

	BacktestSlices = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxlab_backtest_slices_total",
			Help: "Backtest slices inserted",
		},
		[]string{"timeframe", "model"},
	)

	QuoteRuns = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxlab_quote_runs_total",
			Help: "Per-quote forecast/backtest outcomes",
		},
		[]string{"pipeline", "status"},
	)

	RatesIngested = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxlab_rates_ingested_total",
			Help: "Rate observations inserted",
		},
		[]string{"source", "base"},
	)

	SourceCalls = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxlab_source_api_calls_total",
			Help: "Rate source API calls",
		},
		[]string{"source", "status"},
	)

	SourceLatency = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fxlab_source_api_latency_seconds",
			Help:    "Rate source API latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	JobRuns = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxlab_job_runs_total",
			Help: "Scheduled job runs",
		},
		[]string{"job", "success"},
	)

	httpRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxlab_http_requests_total",
			Help: "HTTP requests handled",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fxlab_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "route"},
	)
)

func init() {
	Registry.MustRegister(
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler exposes the registry
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ObservePrediction records one predict call
func ObservePrediction(model string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ModelPredictions.WithLabelValues(model, status).Inc()
	ModelPredictLatency.WithLabelValues(model).Observe(d.Seconds())
}

// ObserveSourceCall records one rate source request
func ObserveSourceCall(source string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	SourceCalls.WithLabelValues(source, status).Inc()
	SourceLatency.WithLabelValues(source).Observe(d.Seconds())
}

// RecordJobRun records a scheduler job execution
func RecordJobRun(job string, success bool) {
	JobRuns.WithLabelValues(job, strconv.FormatBool(success)).Inc()
}

// Middleware records HTTP metrics labelled by the matched mux route template
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
