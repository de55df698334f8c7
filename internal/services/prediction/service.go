// Package prediction orchestrates the serving path: cache lookup, model
// invocation, metrics recording and response assembly.
package prediction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/satyarajmoily/market-predictor/internal/cache"
	"github.com/satyarajmoily/market-predictor/internal/domain/prediction"
	"github.com/satyarajmoily/market-predictor/internal/errors"
	"github.com/satyarajmoily/market-predictor/internal/metrics"
	"github.com/satyarajmoily/market-predictor/internal/model"
	"github.com/satyarajmoily/market-predictor/internal/services/health"
	"github.com/satyarajmoily/market-predictor/internal/system"
	"github.com/satyarajmoily/market-predictor/pkg/logger"
)

// Health component names reported by this service.
const (
	ComponentModel = "model"
	ComponentCache = "cache"
)

// Transient model errors degrade the model component when at least
// degradedMinCalls landed inside the rolling window and the failure ratio
// reaches degradedRatio.
const (
	degradedWindow   = 30 * time.Second
	degradedMinCalls = 4
	degradedRatio    = 0.5
)

type callRecord struct {
	at        time.Time
	transient bool
}

// Service serves scored predictions. It owns the cache-key derivation, the
// error taxonomy mapping, and the model component's health signal.
type Service struct {
	cache         *cache.Cache
	model         model.Model
	registry      *metrics.Registry
	health        *health.Service
	log           *logger.Logger
	ttl           time.Duration
	maxDataPoints int

	mu    sync.Mutex
	calls []callRecord
	fatal error
}

var _ system.Service = (*Service)(nil)

// Options configures the prediction service.
type Options struct {
	TTL           time.Duration
	MaxDataPoints int
}

// New constructs the service and registers its health components.
func New(c *cache.Cache, m model.Model, registry *metrics.Registry, healthSvc *health.Service, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("prediction")
	}
	if opts.TTL <= 0 {
		opts.TTL = 300 * time.Second
	}
	if opts.MaxDataPoints <= 0 {
		opts.MaxDataPoints = 1000
	}
	s := &Service{
		cache:         c,
		model:         m,
		registry:      registry,
		health:        healthSvc,
		log:           log,
		ttl:           opts.TTL,
		maxDataPoints: opts.MaxDataPoints,
	}
	if healthSvc != nil {
		healthSvc.Register(ComponentModel)
		healthSvc.Register(ComponentCache)
	}
	return s
}

func (s *Service) Name() string { return "prediction-service" }

// Start probes the model once so the health monitor can leave the starting
// state without waiting for traffic. A failing probe keeps the process up
// but reports the component state; recovery is the alerting pipeline's job.
func (s *Service) Start(ctx context.Context) error {
	if s.health != nil {
		s.health.Report(ComponentCache, health.StatusOK, "")
	}

	probe := prediction.Request{Timeframe: prediction.Timeframe1h, DataPoints: 1}
	_, err := s.model.Predict(ctx, probe)
	s.observeModelCall(err)
	if err != nil {
		s.log.WithError(err).Warn("model probe failed")
	} else {
		s.log.WithField("model", s.model.Info().Name).Info("model probe succeeded")
	}
	return nil
}

func (s *Service) Stop(_ context.Context) error { return nil }

// ModelInfo exposes the active model identity for the status document.
func (s *Service) ModelInfo() model.Info { return s.model.Info() }

// GetPrediction validates the request, serves it from the cache or the
// model, and records one latency observation and one outcome counter per
// call. Validation failures touch neither the cache nor the outcome
// counters.
func (s *Service) GetPrediction(ctx context.Context, req prediction.Request) (prediction.Response, error) {
	norm := req.Normalize()
	if err := norm.Validate(s.maxDataPoints); err != nil {
		return prediction.Response{}, err
	}

	s.mu.Lock()
	fatal := s.fatal
	s.mu.Unlock()
	if fatal != nil {
		return prediction.Response{}, errors.ModelFailed(fatal)
	}

	key := cacheKey(norm)
	start := time.Now()
	value, outcome, err := s.cache.GetOrCompute(ctx, key, s.ttl, func(cctx context.Context) (interface{}, error) {
		return s.invokeModel(cctx, norm)
	})
	duration := time.Since(start)

	if s.registry != nil {
		labels := prometheus.Labels{"outcome": string(outcome)}
		s.registry.IncrCounter(metrics.MetricCacheRequests, labels)
		s.registry.ObserveHistogram(metrics.MetricPredictionTime, labels, duration.Seconds())
	}

	if err != nil {
		return prediction.Response{}, s.mapError(err)
	}

	result, ok := value.(prediction.Result)
	if !ok {
		return prediction.Response{}, errors.Internal(fmt.Errorf("unexpected cache value type %T", value))
	}

	resp := prediction.Response{
		PredictedPrice:      result.PredictedPrice,
		PredictionTimestamp: result.ComputedAt,
		ModelVersion:        result.ModelVersion,
		Timeframe:           norm.Timeframe,
	}
	if norm.IncludeConfidence {
		confidence := result.ConfidenceScore
		resp.ConfidenceScore = &confidence
	}
	return resp, nil
}

// invokeModel is the cache compute function: one invocation per miss,
// shared by all waiters.
func (s *Service) invokeModel(ctx context.Context, req prediction.Request) (interface{}, error) {
	result, err := s.model.Predict(ctx, req)
	s.observeModelCall(err)
	if err != nil {
		return nil, err
	}
	if s.registry != nil {
		// Only fresh model output moves the confidence gauge; cache hits
		// must not.
		s.registry.SetGauge(metrics.MetricConfidenceGauge, nil, result.ConfidenceScore)
	}
	return result, nil
}

// observeModelCall feeds the rolling error window and pushes the model
// component signal. Insufficient-data errors are the caller's problem and do
// not touch health.
func (s *Service) observeModelCall(err error) {
	var insufficient *model.InsufficientDataError
	if stderrors.As(err, &insufficient) {
		return
	}

	var fatalErr *model.FatalError
	if stderrors.As(err, &fatalErr) {
		s.mu.Lock()
		s.fatal = fatalErr
		s.mu.Unlock()
		if s.health != nil {
			s.health.Report(ComponentModel, health.StatusFailed, fatalErr.Reason)
		}
		s.log.WithError(err).Error("model permanently failed")
		return
	}

	transient := err != nil

	s.mu.Lock()
	now := time.Now()
	s.calls = append(s.calls, callRecord{at: now, transient: transient})
	cutoff := now.Add(-degradedWindow)
	for len(s.calls) > 0 && s.calls[0].at.Before(cutoff) {
		s.calls = s.calls[1:]
	}
	total := len(s.calls)
	failures := 0
	for _, c := range s.calls {
		if c.transient {
			failures++
		}
	}
	s.mu.Unlock()

	if s.health == nil {
		return
	}
	if total >= degradedMinCalls && float64(failures) >= degradedRatio*float64(total) {
		s.health.Report(ComponentModel, health.StatusDegraded,
			fmt.Sprintf("%d of %d model calls failed in the last %s", failures, total, degradedWindow))
		return
	}
	if !transient {
		s.health.Report(ComponentModel, health.StatusOK, "")
	}
}

// mapError translates model and cache errors into the service taxonomy.
func (s *Service) mapError(err error) error {
	var se *errors.ServiceError
	if stderrors.As(err, &se) {
		return se
	}

	var insufficient *model.InsufficientDataError
	if stderrors.As(err, &insufficient) {
		return errors.InsufficientData(insufficient.Requested, insufficient.Available)
	}
	var unavailable *model.UnavailableError
	if stderrors.As(err, &unavailable) {
		return errors.ModelUnavailable(err)
	}
	var fatalErr *model.FatalError
	if stderrors.As(err, &fatalErr) {
		return errors.ModelFailed(err)
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.ModelUnavailable(err)
	}
	if stderrors.Is(err, context.Canceled) {
		return err
	}
	return errors.Internal(err)
}

// cacheKey hashes the normalized request fields. Identical normalized
// requests always map to the same key.
func cacheKey(req prediction.Request) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("v1|%s|%d|%t", req.Timeframe, req.DataPoints, req.IncludeConfidence)))
	return hex.EncodeToString(sum[:])
}
