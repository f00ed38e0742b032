/*
Package metrics holds the Prometheus instruments for the scheduling
engine and the HTTP middleware that feeds the request metrics.

EXPOSED SERIES:
  schedule_http_requests_total{method,route,status}
  schedule_http_request_duration_seconds{method,route}
  schedule_assignments_created_total
  schedule_policy_rejections_total{kind}
  schedule_bulk_operations_total{operation}
  schedule_undo_operations_total{outcome}
*/
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	AssignmentsCreated prometheus.Counter
	PolicyRejections   *prometheus.CounterVec
	BulkOperations     *prometheus.CounterVec
	UndoOperations     *prometheus.CounterVec
}

// New registers the engine's instruments on the given registerer. Pass
// prometheus.DefaultRegisterer in main; tests use a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "schedule_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		AssignmentsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "schedule_assignments_created_total",
			Help: "Assignments successfully created.",
		}),
		PolicyRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_policy_rejections_total",
			Help: "Writes rejected by policy, by rejection kind.",
		}, []string{"kind"}),
		BulkOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_bulk_operations_total",
			Help: "Committed bulk operations by operation type.",
		}, []string{"operation"}),
		UndoOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "schedule_undo_operations_total",
			Help: "Undo/redo attempts by outcome.",
		}, []string{"outcome"}),
	}
}

// statusRecorder captures the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency per chi route pattern,
// so path parameters don't explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
