// Package prediction defines the request and result types shared by the
// model, cache and service layers.
package prediction

import (
	"strings"
	"time"

	"github.com/satyarajmoily/market-predictor/internal/errors"
)

// Timeframe is the prediction horizon requested by the caller.
type Timeframe string

const (
	Timeframe1h Timeframe = "1h"
	Timeframe4h Timeframe = "4h"
	Timeframe1d Timeframe = "1d"
)

// Duration returns the horizon as a time.Duration.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe1h:
		return time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	}
	return 0
}

// Valid reports whether the timeframe is one of the supported horizons.
func (t Timeframe) Valid() bool {
	switch t {
	case Timeframe1h, Timeframe4h, Timeframe1d:
		return true
	}
	return false
}

// Request is an inbound scored-prediction request. It is immutable once
// normalized and validated.
type Request struct {
	Timeframe         Timeframe `json:"timeframe"`
	DataPoints        int       `json:"data_points"`
	IncludeConfidence bool      `json:"include_confidence"`
}

// Normalize returns a copy with the timeframe canonicalized. Cache keys are
// derived from normalized requests only.
func (r Request) Normalize() Request {
	r.Timeframe = Timeframe(strings.ToLower(strings.TrimSpace(string(r.Timeframe))))
	return r
}

// Validate checks the request against configured bounds. It returns a
// ServiceError suitable for the HTTP boundary.
func (r Request) Validate(maxDataPoints int) error {
	if !r.Timeframe.Valid() {
		return errors.ValidationFailed("timeframe", "must be one of 1h, 4h, 1d")
	}
	if r.DataPoints <= 0 {
		return errors.ValidationFailed("data_points", "must be a positive integer")
	}
	if r.DataPoints > maxDataPoints {
		return errors.ValidationFailed("data_points", "exceeds configured maximum")
	}
	return nil
}

// Result is the output of a model invocation. Never mutated after creation.
type Result struct {
	PredictedPrice  float64   `json:"predicted_price"`
	ConfidenceScore float64   `json:"confidence_score"`
	ModelVersion    string    `json:"model_version"`
	ComputedAt      time.Time `json:"computed_at"`
}

// Response is the API-facing prediction document. ConfidenceScore is omitted
// when the caller did not ask for it.
type Response struct {
	PredictedPrice      float64   `json:"predicted_price"`
	ConfidenceScore     *float64  `json:"confidence_score,omitempty"`
	PredictionTimestamp time.Time `json:"prediction_timestamp"`
	ModelVersion        string    `json:"model_version"`
	Timeframe           Timeframe `json:"timeframe"`
}
