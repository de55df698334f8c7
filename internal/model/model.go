// Package model defines the prediction model contract and its concrete
// variants. Models are pure with respect to the request so results can be
// cached by a request-derived key.
package model

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/satyarajmoily/market-predictor/internal/config"
	"github.com/satyarajmoily/market-predictor/internal/domain/prediction"
	"github.com/satyarajmoily/market-predictor/pkg/logger"
)

// Info identifies a model implementation.
type Info struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Model scores a prediction request. Implementations must not mutate hidden
// global state between calls.
type Model interface {
	Predict(ctx context.Context, req prediction.Request) (prediction.Result, error)
	Info() Info
}

// InsufficientDataError reports that the request asked for more history than
// the model holds.
type InsufficientDataError struct {
	Requested int
	Available int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: requested %d points, have %d", e.Requested, e.Available)
}

// UnavailableError reports a transient failure reaching the model's backing
// resource. It is the only model error that degrades the model component.
type UnavailableError struct {
	Reason string
	Cause  error
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("model unavailable: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("model unavailable: %s", e.Reason)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// FatalError reports that the model is permanently unusable for this
// process. The serving layer short-circuits all further calls.
type FatalError struct {
	Reason string
}

func (e *FatalError) Error() string { return fmt.Sprintf("model fatal: %s", e.Reason) }

// Select constructs the configured model variant. Selection is explicit; no
// reflection or dynamic lookup.
func Select(cfg config.ModelConfig, log *logger.Logger) (Model, error) {
	if log == nil {
		log = logger.NewDefault("model")
	}
	switch cfg.Type {
	case "dummy", "random-walk":
		return NewRandomWalk(cfg.Seed, cfg.BasePrice), nil
	case "moving-average":
		series, err := loadSeries(cfg, log)
		if err != nil {
			return nil, err
		}
		return NewMovingAverage(series, cfg.Window), nil
	}
	return nil, fmt.Errorf("unknown model type %q", cfg.Type)
}

func loadSeries(cfg config.ModelConfig, log *logger.Logger) ([]float64, error) {
	if cfg.HistoryFile != "" {
		series, err := LoadHistory(cfg.HistoryFile)
		if err != nil {
			return nil, fmt.Errorf("load price history: %w", err)
		}
		log.WithField("file", cfg.HistoryFile).
			WithField("points", len(series)).
			Info("price history loaded")
		return series, nil
	}
	points := cfg.HistoryPoints
	if points <= 0 {
		points = 500
	}
	log.WithField("points", points).Info("using synthetic price history")
	return SyntheticSeries(cfg.Seed, points, cfg.BasePrice), nil
}

// requestSeed folds the normalized request fields into a deterministic seed
// offset so identical requests always walk the same path.
func requestSeed(req prediction.Request) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%d|%t", req.Timeframe, req.DataPoints, req.IncludeConfidence)
	return int64(h.Sum64())
}
