package ingest

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_http_requests_total",
			Help: "Total number of HTTP requests handled by the ingestion server.",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ingest_http_request_duration_seconds",
			Help:    "Duration of HTTP requests handled by the ingestion server.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	feedbackAcceptedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_feedback_accepted_total",
			Help: "Total number of feedback events accepted and published to the queue.",
		},
	)
	feedbackRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_feedback_rejected_total",
			Help: "Total number of feedback submissions rejected before publish.",
		},
		[]string{"reason"},
	)
)

var (
	registryOnce sync.Once
	registry     *prometheus.Registry
)

// Registry returns the process-wide Prometheus registry backing the
// /metrics route, building it on first call so repeated construction (as in
// tests standing up multiple servers) never double-registers a collector.
func Registry() *prometheus.Registry {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			httpRequestsTotal,
			httpRequestDurationSeconds,
			feedbackAcceptedTotal,
			feedbackRejectedTotal,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
	return registry
}

// metricsMiddleware records request count and latency per method/path/status.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lw, r)

		duration := time.Since(start).Seconds()
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(lw.statusCode)).Inc()
		httpRequestDurationSeconds.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
