// Package router exposes the REST surface: prediction, health, status and
// metrics endpoints.
package router

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/satyarajmoily/market-predictor/internal/config"
	"github.com/satyarajmoily/market-predictor/internal/domain/prediction"
	"github.com/satyarajmoily/market-predictor/internal/errors"
	"github.com/satyarajmoily/market-predictor/internal/metrics"
	"github.com/satyarajmoily/market-predictor/internal/services/health"
	predictionsvc "github.com/satyarajmoily/market-predictor/internal/services/prediction"
	"github.com/satyarajmoily/market-predictor/internal/services/sysprobe"
	"github.com/satyarajmoily/market-predictor/pkg/logger"
)

// Options carries the collaborators the routes need.
type Options struct {
	Config     *config.Config
	Log        *logger.Logger
	Registry   *metrics.Registry
	Health     *health.Service
	Prediction *predictionsvc.Service
	Probe      *sysprobe.Probe
}

type handler struct {
	opts Options
}

// New builds the route table.
func New(opts Options) http.Handler {
	if opts.Log == nil {
		opts.Log = logger.NewDefault("router")
	}
	h := &handler{opts: opts}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/predict", h.predict).Methods(http.MethodPost)
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/status", h.status).Methods(http.MethodGet)
	r.Handle("/metrics", opts.Registry.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/", h.root).Methods(http.MethodGet)
	return r
}

func (h *handler) predict(w http.ResponseWriter, r *http.Request) {
	var req prediction.Request
	if err := decodeJSON(r.Body, &req); err != nil {
		writeServiceError(w, errors.ValidationFailed("body", err.Error()))
		return
	}

	resp, err := h.opts.Prediction.GetPrediction(r.Context(), req)
	if err != nil {
		se := errors.AsService(err)
		if se.Code == errors.CodeInternal {
			h.opts.Log.WithError(err).Error("prediction failed")
		}
		writeServiceError(w, se)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	h.opts.Registry.IncrCounter(metrics.MetricHealthChecks, nil)

	overall := h.opts.Health.Overall()
	doc := map[string]interface{}{
		"status":    string(overall),
		"timestamp": time.Now().UTC(),
		"service":   config.ServiceName,
		"version":   config.ServiceVersion,
	}
	if overall == health.OverallHealthy || overall == health.OverallDegraded {
		writeJSON(w, http.StatusOK, doc)
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, doc)
}

// status always answers 200: its purpose is to stay queryable while the
// service degrades.
func (h *handler) status(w http.ResponseWriter, _ *http.Request) {
	snap := h.opts.Health.Snapshot()

	metadata := map[string]string{
		"environment": h.opts.Config.Environment,
		"model_type":  h.opts.Config.Model.Type,
		"cache_ttl":   fmt.Sprintf("%d", h.opts.Config.Cache.TTL),
	}
	if h.opts.Prediction != nil {
		info := h.opts.Prediction.ModelInfo()
		metadata["model_version"] = info.Version
	}
	if h.opts.Probe != nil {
		if usage, ok := h.opts.Probe.Usage(); ok {
			metadata["memory_mb"] = fmt.Sprintf("%.1f", usage.MemoryMB)
			metadata["cpu_percent"] = fmt.Sprintf("%.1f", usage.CPUPercent)
			metadata["goroutines"] = fmt.Sprintf("%d", usage.Goroutines)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":             snap.Overall,
		"service":            config.ServiceName,
		"version":            config.ServiceVersion,
		"components":         snap.Components,
		"uptime_seconds":     snap.UptimeSeconds,
		"last_transition_at": snap.LastTransitionAt,
		"timestamp":          snap.Timestamp,
		"metadata":           metadata,
	})
}

func (h *handler) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":     config.ServiceName,
		"version":     config.ServiceVersion,
		"status":      "running",
		"health_url":  "/health",
		"status_url":  "/status",
		"metrics_url": "/metrics",
		"predict_url": "/api/v1/predict",
	})
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError renders the stable error shape: code, safe message,
// optional details. Internal causes never reach the body.
func writeServiceError(w http.ResponseWriter, se *errors.ServiceError) {
	body := map[string]interface{}{
		"error":     se.Code,
		"message":   se.Message,
		"timestamp": time.Now().UTC(),
	}
	if len(se.Details) > 0 {
		body["details"] = se.Details
	}
	writeJSON(w, se.HTTPStatus, body)
}
