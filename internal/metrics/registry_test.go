package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestIncrCounter_ConcurrentNoLostUpdates(t *testing.T) {
	r := NewRegistry("test")

	const workers = 20
	const perWorker = 500

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				r.IncrCounter("ops_total", prometheus.Labels{"outcome": "ok"})
			}
		}()
	}
	wg.Wait()

	snapshot, err := r.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	want := `test_ops_total{outcome="ok"} 10000`
	if !strings.Contains(snapshot, want) {
		t.Fatalf("expected %q in snapshot:\n%s", want, snapshot)
	}
}

func TestSnapshot_ContainsAllKinds(t *testing.T) {
	r := NewRegistry("test")
	r.IncrCounter("events_total", prometheus.Labels{"kind": "a"})
	r.ObserveHistogram("latency_seconds", prometheus.Labels{"op": "predict"}, 0.042)
	r.SetGauge("level", nil, 2)
	r.AddGauge("inflight", nil, 1)

	snapshot, err := r.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	for _, want := range []string{
		`test_events_total{kind="a"} 1`,
		`test_latency_seconds_count{op="predict"} 1`,
		`test_level 2`,
		`test_inflight 1`,
	} {
		if !strings.Contains(snapshot, want) {
			t.Fatalf("expected %q in snapshot:\n%s", want, snapshot)
		}
	}
}

func TestSetGauge_LastValueWins(t *testing.T) {
	r := NewRegistry("test")
	r.SetGauge("confidence", nil, 0.4)
	r.SetGauge("confidence", nil, 0.9)

	snapshot, err := r.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if !strings.Contains(snapshot, "test_confidence 0.9") {
		t.Fatalf("expected last write to win:\n%s", snapshot)
	}
}

func TestInstrument_RecordsBoundedLabels(t *testing.T) {
	r := NewRegistry("test")
	handler := Instrument(r, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.Contains(req.URL.Path, "missing") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/api/v1/predict", "/api/v1/predict", "/health", "/missing/12345"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	snapshot, err := r.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	for _, want := range []string{
		`test_http_requests_total{method="GET",path="/api/v1/predict",status="2xx"} 2`,
		`test_http_requests_total{method="GET",path="/health",status="2xx"} 1`,
		`test_http_requests_total{method="GET",path="/other",status="4xx"} 1`,
	} {
		if !strings.Contains(snapshot, want) {
			t.Fatalf("expected %q in snapshot:\n%s", want, snapshot)
		}
	}
	if strings.Contains(snapshot, "missing/12345") {
		t.Fatalf("raw path leaked into labels:\n%s", snapshot)
	}
}

func TestInstrument_SkipsExpositionEndpoint(t *testing.T) {
	r := NewRegistry("test")
	handler := Instrument(r, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	snapshot, err := r.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if strings.Contains(snapshot, "test_http_requests_total") {
		t.Fatalf("exposition endpoint must not be recorded:\n%s", snapshot)
	}
}

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                    "/",
		"/":                   "/",
		"/health":             "/health",
		"/status":             "/status",
		"/api/v1/predict":     "/api/v1/predict",
		"/api/v1/predict/":    "/api/v1/predict",
		"/api/v1/unknown":     "/other",
		"/some/arbitrary/url": "/other",
	}
	for raw, want := range cases {
		if got := canonicalPath(raw); got != want {
			t.Fatalf("canonicalPath(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestStatusClass(t *testing.T) {
	cases := map[int]string{
		200: "2xx", 204: "2xx", 301: "3xx", 400: "4xx", 404: "4xx", 429: "4xx", 500: "5xx", 503: "5xx",
	}
	for code, want := range cases {
		if got := statusClass(code); got != want {
			t.Fatalf("statusClass(%d) = %q, want %q", code, got, want)
		}
	}
}
