package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metric names recorded by the serving core.
const (
	MetricHTTPRequests     = "http_requests_total"
	MetricHTTPDuration     = "http_request_duration_seconds"
	MetricHTTPInFlight     = "http_inflight_requests"
	MetricHealthChecks     = "health_checks_total"
	MetricCacheRequests    = "cache_requests_total"
	MetricPredictionTime   = "prediction_duration_seconds"
	MetricConfidenceGauge  = "prediction_confidence"
	MetricHealthStateGauge = "health_state"
)

// Instrument wraps a handler with request timing and outcome counters. The
// exposition endpoint itself is passed through unrecorded.
func Instrument(registry *Registry, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		registry.AddGauge(MetricHTTPInFlight, nil, 1)
		defer registry.AddGauge(MetricHTTPInFlight, nil, -1)

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		registry.IncrCounter(MetricHTTPRequests, prometheus.Labels{
			"method": method,
			"path":   path,
			"status": statusClass(rec.status),
		})
		registry.ObserveHistogram(MetricHTTPDuration, prometheus.Labels{
			"method": method,
			"path":   path,
		}, duration.Seconds())
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

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses request paths onto the fixed route templates so
// label cardinality stays bounded.
func canonicalPath(raw string) string {
	switch {
	case raw == "" || raw == "/":
		return "/"
	case raw == "/health":
		return "/health"
	case raw == "/status":
		return "/status"
	case strings.HasPrefix(raw, "/api/v1/predict"):
		return "/api/v1/predict"
	}
	return "/other"
}

func statusClass(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	}
	return "5xx"
}
