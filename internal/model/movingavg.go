package model

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/satyarajmoily/market-predictor/internal/domain/prediction"
)

const movingAverageVersion = "moving-average-v1"

// MovingAverage predicts by extrapolating the simple moving average of the
// most recent window over the requested horizon.
type MovingAverage struct {
	series []float64
	window int
}

var _ Model = (*MovingAverage)(nil)

// NewMovingAverage creates a moving-average model over the given price
// series. The series is copied; callers may not mutate it afterwards.
func NewMovingAverage(series []float64, window int) *MovingAverage {
	if window <= 1 {
		window = 20
	}
	owned := make([]float64, len(series))
	copy(owned, series)
	return &MovingAverage{series: owned, window: window}
}

func (m *MovingAverage) Info() Info {
	return Info{Name: "moving-average", Version: movingAverageVersion}
}

func (m *MovingAverage) Predict(ctx context.Context, req prediction.Request) (prediction.Result, error) {
	if err := ctx.Err(); err != nil {
		return prediction.Result{}, err
	}
	if len(m.series) == 0 {
		return prediction.Result{}, &UnavailableError{Reason: "no price history loaded"}
	}
	if req.DataPoints > len(m.series) {
		return prediction.Result{}, &InsufficientDataError{Requested: req.DataPoints, Available: len(m.series)}
	}

	points := m.series[len(m.series)-req.DataPoints:]
	window := m.window
	if window > len(points) {
		window = len(points)
	}

	sma := mean(points[len(points)-window:])

	// Drift is the change of the moving average over one step, projected
	// over the horizon in hours.
	drift := 0.0
	if len(points) > window {
		prev := mean(points[len(points)-window-1 : len(points)-1])
		drift = sma - prev
	}
	predicted := sma + drift*req.Timeframe.Duration().Hours()
	if predicted < 0 {
		predicted = 0
	}

	// Confidence shrinks with the dispersion of the window relative to its
	// mean.
	dispersion := 0.0
	if sma != 0 {
		dispersion = stddev(points[len(points)-window:], sma) / math.Abs(sma)
	}
	confidence := 1 / (1 + 10*dispersion)

	return prediction.Result{
		PredictedPrice:  math.Round(predicted*100) / 100,
		ConfidenceScore: confidence,
		ModelVersion:    movingAverageVersion,
		ComputedAt:      time.Now().UTC(),
	}, nil
}

// SyntheticSeries generates a deterministic price history for environments
// without an injected series.
func SyntheticSeries(seed int64, n int, base float64) []float64 {
	if base <= 0 {
		base = 45000
	}
	rng := rand.New(rand.NewSource(seed))
	series := make([]float64, n)
	price := base
	for i := range series {
		price += price * rng.NormFloat64() * 0.005
		if price < 1 {
			price = 1
		}
		series[i] = math.Round(price*100) / 100
	}
	return series
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
