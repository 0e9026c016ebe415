// internal/app/system/metrics/metrics.go

// Package metrics registers Prometheus metrics and the HTTP middleware
// that records per-route request counts and latency. Path labels are
// normalized so per-session URLs do not explode cardinality.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratasort_http_requests_total",
			Help: "Total HTTP requests handled",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stratasort_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Pipeline metrics, updated from the background worker.
var (
	// StagesTotal counts background stage outcomes by stage and result.
	StagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratasort_pipeline_stages_total",
			Help: "Background pipeline stage executions",
		},
		[]string{"stage", "result"},
	)

	// FilesOrganized counts files written into organized archives.
	FilesOrganized = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stratasort_files_organized_total",
			Help: "Files placed by completed organize sessions",
		},
	)
)

// Middleware returns HTTP middleware that records request count and
// duration for each endpoint.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			path := normalizePath(r.URL.Path)

			wrapped := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			status := strconv.Itoa(wrapped.statusCode)
			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the original ResponseWriter.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// normalizePath collapses identifier path segments to {id}. Session ids
// are 24-hex ObjectIDs; download tokens are long opaque strings.
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if isObjectIDSegment(seg) {
			segments[i] = "{id}"
		}
	}
	normalized := strings.Join(segments, "/")
	if strings.HasPrefix(normalized, "/api/download/") {
		return "/api/download/{token}"
	}
	return normalized
}

func isObjectIDSegment(seg string) bool {
	if len(seg) != 24 {
		return false
	}
	for _, c := range seg {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}
