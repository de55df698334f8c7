package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/satyarajmoily/market-predictor/internal/cache"
	"github.com/satyarajmoily/market-predictor/internal/config"
	"github.com/satyarajmoily/market-predictor/internal/metrics"
	"github.com/satyarajmoily/market-predictor/internal/model"
	"github.com/satyarajmoily/market-predictor/internal/services/health"
	predictionsvc "github.com/satyarajmoily/market-predictor/internal/services/prediction"
)

type fixture struct {
	handler  http.Handler
	health   *health.Service
	registry *metrics.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := config.Default()
	registry := metrics.NewRegistry("test")
	healthSvc := health.NewService(30*time.Second, nil)

	store := cache.New(cache.Options{MaxEntries: 16})
	m := model.NewRandomWalk(42, 45000)
	svc := predictionsvc.New(store, m, registry, healthSvc, predictionsvc.Options{TTL: time.Minute, MaxDataPoints: 1000}, nil)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start prediction service: %v", err)
	}

	return &fixture{
		handler: New(Options{
			Config:     cfg,
			Registry:   registry,
			Health:     healthSvc,
			Prediction: svc,
		}),
		health:   healthSvc,
		registry: registry,
	}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var doc map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v\n%s", err, rec.Body.String())
	}
	return doc
}

func TestPredict_Success(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/predict",
		`{"timeframe": "1h", "data_points": 100, "include_confidence": true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}

	doc := decodeBody(t, rec)
	if doc["predicted_price"].(float64) <= 0 {
		t.Fatalf("missing predicted_price: %v", doc)
	}
	if _, ok := doc["confidence_score"]; !ok {
		t.Fatalf("confidence requested but absent: %v", doc)
	}
	if doc["model_version"] == "" || doc["timeframe"] != "1h" {
		t.Fatalf("incomplete response: %v", doc)
	}
}

func TestPredict_ConfidenceOmitted(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/predict", `{"timeframe": "1h", "data_points": 100}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	doc := decodeBody(t, rec)
	if _, ok := doc["confidence_score"]; ok {
		t.Fatalf("confidence must be omitted when not requested: %v", doc)
	}
}

func TestPredict_ValidationErrors(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		body string
	}{
		{"bad-timeframe", `{"timeframe": "2w", "data_points": 100}`},
		{"zero-points", `{"timeframe": "1h", "data_points": 0}`},
		{"negative-points", `{"timeframe": "1h", "data_points": -5}`},
		{"excessive-points", `{"timeframe": "1h", "data_points": 99999}`},
		{"unknown-field", `{"timeframe": "1h", "data_points": 100, "horizon": 3}`},
		{"malformed-json", `{"timeframe": `},
	}
	for _, tc := range cases {
		rec := f.do(t, http.MethodPost, "/api/v1/predict", tc.body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", tc.name, rec.Code, rec.Body.String())
		}
		doc := decodeBody(t, rec)
		if doc["error"] != "validation_failed" {
			t.Fatalf("%s: expected validation_failed code, got %v", tc.name, doc["error"])
		}
		if doc["message"] == "" {
			t.Fatalf("%s: expected a caller-safe message", tc.name)
		}
	}
}

func TestPredict_MethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/v1/predict", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHealth_ReflectsOverallStatus(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 while healthy, got %d: %s", rec.Code, rec.Body.String())
	}
	doc := decodeBody(t, rec)
	if doc["status"] != "healthy" || doc["service"] != "market-predictor" {
		t.Fatalf("unexpected health doc: %v", doc)
	}

	f.health.Report(predictionsvc.ComponentModel, health.StatusDegraded, "elevated error rate")
	rec = f.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("degraded must still answer 200, got %d", rec.Code)
	}
	if doc := decodeBody(t, rec); doc["status"] != "degraded" {
		t.Fatalf("expected degraded status, got %v", doc["status"])
	}

	f.health.Report(predictionsvc.ComponentModel, health.StatusFailed, "down")
	rec = f.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("unhealthy must answer 503, got %d", rec.Code)
	}
}

func TestStatus_AlwaysAnswers200(t *testing.T) {
	f := newFixture(t)
	f.health.Report(predictionsvc.ComponentModel, health.StatusFailed, "down")

	rec := f.do(t, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status must stay queryable while unhealthy, got %d", rec.Code)
	}
	doc := decodeBody(t, rec)
	if doc["status"] != "unhealthy" {
		t.Fatalf("expected unhealthy overall, got %v", doc["status"])
	}

	components, ok := doc["components"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing components: %v", doc)
	}
	modelState, ok := components["model"].(map[string]interface{})
	if !ok || modelState["status"] != "failed" {
		t.Fatalf("expected failed model component, got %v", components)
	}

	metadata, ok := doc["metadata"].(map[string]interface{})
	if !ok || metadata["model_type"] != "dummy" || metadata["model_version"] == "" {
		t.Fatalf("incomplete metadata: %v", doc["metadata"])
	}
	if _, ok := doc["uptime_seconds"]; !ok {
		t.Fatalf("missing uptime: %v", doc)
	}
}

func TestMetrics_ExposesRecordedSeries(t *testing.T) {
	f := newFixture(t)

	if rec := f.do(t, http.MethodPost, "/api/v1/predict", `{"timeframe": "1h", "data_points": 100}`); rec.Code != http.StatusOK {
		t.Fatalf("predict: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("health: %d", rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics endpoint: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`test_cache_requests_total{outcome="miss"} 1`,
		"test_health_checks_total 1",
		"test_prediction_duration_seconds",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in exposition:\n%s", want, body)
		}
	}
}

func TestRoot_ServiceDocument(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	doc := decodeBody(t, rec)
	if doc["service"] != "market-predictor" || doc["predict_url"] != "/api/v1/predict" {
		t.Fatalf("unexpected root doc: %v", doc)
	}
}
