package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP-level metrics shared by every endpoint.
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Gate metrics. A growing audit_append_failures_total is a compliance gap and
// must page the on-call, so it gets its own counter rather than a log line.
var (
	gateRateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_rate_limited_total",
			Help: "Requests rejected by the throttle table, by endpoint class.",
		},
		[]string{"class"},
	)

	gateDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_denied_total",
			Help: "Requests rejected by the gate before execution, by reason.",
		},
		[]string{"reason"},
	)

	auditAppendFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "audit_append_failures_total",
		Help: "Audit entries that could not be appended after the primary action succeeded.",
	})

	serviceReady = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "service_ready",
		Help: "1 when the readiness probe last succeeded.",
	})
)

// Init registers all metrics in the default registry.
func Init() {
	prometheus.MustRegister(
		httpInFlight, httpRequestsTotal, httpRequestDuration,
		gateRateLimited, gateDenied, auditAppendFailures, serviceReady,
	)
}

// Handler exposes the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// IncRateLimited records a throttle rejection for the endpoint class.
func IncRateLimited(class string) {
	gateRateLimited.WithLabelValues(class).Inc()
}

// IncDenied records a gate rejection (unauthenticated, forbidden, invalid_input).
func IncDenied(reason string) {
	gateDenied.WithLabelValues(reason).Inc()
}

// IncAuditAppendFailure records a lost audit entry.
func IncAuditAppendFailure() {
	auditAppendFailures.Inc()
}

// SetReady reflects the most recent readiness probe result.
func SetReady(ready bool) {
	if ready {
		serviceReady.Set(1)
		return
	}
	serviceReady.Set(0)
}

// CanonicalPath collapses resource identifiers so metric labels stay bounded.
// "/v1/tickets/01J.../status" becomes "/v1/tickets/:id/status".
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	const prefix = "/v1/tickets/"
	if rest, ok := strings.CutPrefix(path, prefix); ok && rest != "" && rest != "summary" {
		switch {
		case !strings.Contains(rest, "/"):
			return prefix + ":id"
		case strings.HasSuffix(rest, "/status") && strings.Count(rest, "/") == 1:
			return prefix + ":id/status"
		case strings.HasSuffix(rest, "/assessment") && strings.Count(rest, "/") == 1:
			return prefix + ":id/assessment"
		}
	}
	return path
}

// Instrument wraps a handler with RPS/latency/in-flight measurements.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter records the response code for metric labels.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working through the instrumented writer.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
