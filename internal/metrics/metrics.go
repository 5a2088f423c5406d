// Package metrics exposes Prometheus collectors for the serpflow service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	queriesEnqueuedTotal       prometheus.Counter
	claimsTotal                prometheus.Counter
	emptyPollsTotal            prometheus.Counter
	submissionsTotal           *prometheus.CounterVec
	resultRowsTotal            prometheus.Counter
	queueDepth                 *prometheus.GaugeVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		queriesEnqueuedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "serpflow_queries_enqueued_total",
				Help: "Total number of queries accepted through the admin enqueue endpoint.",
			},
		)

		claimsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "serpflow_claims_total",
				Help: "Total number of queries claimed by polling workers.",
			},
		)

		emptyPollsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "serpflow_empty_polls_total",
				Help: "Total number of worker polls that found no pending query.",
			},
		)

		submissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "serpflow_submissions_total",
				Help: "Total number of result submissions, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		resultRowsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "serpflow_result_rows_total",
				Help: "Total number of scraped result rows stored.",
			},
		)

		queueDepth = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "serpflow_queries",
				Help: "Queries currently in the store, labeled by lifecycle status.",
			},
			[]string{"status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware is a chi middleware that records HTTP request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}

		ObserveHTTPRequest(r.Method, routePattern, ww.statusCode, time.Since(start))
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

// ObserveEnqueued counts queries accepted for dispatch.
func ObserveEnqueued(n int) {
	if n > 0 {
		queriesEnqueuedTotal.Add(float64(n))
	}
}

// ObserveClaim counts a successful dispatch.
func ObserveClaim() {
	claimsTotal.Inc()
}

// ObserveEmptyPoll counts a poll that found nothing pending.
func ObserveEmptyPoll() {
	emptyPollsTotal.Inc()
}

// ObserveSubmission counts a result submission and its stored rows.
func ObserveSubmission(outcome string, resultRows int) {
	submissionsTotal.WithLabelValues(outcome).Inc()
	if resultRows > 0 {
		resultRowsTotal.Add(float64(resultRows))
	}
}

// SetQueueDepth records the number of queries in one lifecycle status.
func SetQueueDepth(status string, count int) {
	queueDepth.WithLabelValues(status).Set(float64(count))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
