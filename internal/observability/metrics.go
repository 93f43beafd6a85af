package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for store requests.
const (
	OutcomeOK           = "ok"
	OutcomeUnauthorized = "unauthorized"
	OutcomeForbidden    = "forbidden"
	OutcomeRejected     = "rejected"
	OutcomeDisguised    = "disguised"
	OutcomeTransport    = "transport"
	OutcomeCircuitOpen  = "circuit_open"
)

// StoreMetrics counts artifact store requests made by the client side.
// A nil *StoreMetrics records nothing.
type StoreMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	savedBytes      *prometheus.CounterVec
}

// NewStoreMetrics creates StoreMetrics on a private registry.
func NewStoreMetrics() *StoreMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resume_vault",
			Subsystem: "store_client",
			Name:      "requests_total",
			Help:      "Artifact store requests by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "resume_vault",
			Subsystem: "store_client",
			Name:      "request_duration_seconds",
			Help:      "Artifact store request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	savedBytes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resume_vault",
			Subsystem: "retrieval",
			Name:      "saved_bytes_total",
			Help:      "Bytes written to local files by downloads.",
		},
		[]string{"kind"},
	)

	registry.MustRegister(requestTotal, requestDuration, savedBytes)

	return &StoreMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		savedBytes:      savedBytes,
	}
}

// RecordRequest records one finished store request.
func (m *StoreMetrics) RecordRequest(op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requestTotal.WithLabelValues(op, outcome).Inc()
	m.requestDuration.WithLabelValues(op).Observe(d.Seconds())
}

// RecordSaved records bytes written for a download of kind "single" or "archive".
func (m *StoreMetrics) RecordSaved(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.savedBytes.WithLabelValues(kind).Add(float64(n))
}

// Handler exposes the metrics in Prometheus text format.
func (m *StoreMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *StoreMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPServerMetrics instruments the reference store's HTTP handlers.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
}

// NewHTTPServerMetrics creates HTTPServerMetrics on a private registry.
func NewHTTPServerMetrics() *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resume_vault",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "resume_vault",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "resume_vault",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		},
	)

	registry.MustRegister(requestTotal, requestDuration, requestInFlight)

	return &HTTPServerMetrics{
		registry:        registry,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
	}
}

// Handler exposes the metrics in Prometheus text format.
func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records count, duration and in-flight gauge for every request.
func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := NormalizePath(r.URL.Path)
		recorder := &StatusRecorder{ResponseWriter: w, StatusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.StatusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// NormalizePath collapses per-subject and per-user path segments so label
// cardinality stays bounded.
func NormalizePath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) > 2 {
		switch parts[1] {
		case "delegated":
			if parts[2] != "bidders" {
				parts[2] = "{bidderId}"
			}
		case "admin":
			if len(parts) > 3 && parts[2] == "users" {
				parts[3] = "{userId}"
			}
		}
	}
	return strings.Join(parts, "/")
}

// StatusRecorder captures the status code written by a handler.
type StatusRecorder struct {
	http.ResponseWriter
	StatusCode int
}

func (w *StatusRecorder) WriteHeader(statusCode int) {
	w.StatusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *StatusRecorder) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
