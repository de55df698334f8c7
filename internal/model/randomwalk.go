package model

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/satyarajmoily/market-predictor/internal/domain/prediction"
)

const randomWalkVersion = "random-walk-v1"

// RandomWalk is the dummy model: a seeded geometric random walk from a base
// price. The walk is re-derived from the seed and the request fields on
// every call, so identical requests produce identical prices.
type RandomWalk struct {
	seed      int64
	basePrice float64
}

var _ Model = (*RandomWalk)(nil)

// NewRandomWalk creates a random-walk model.
func NewRandomWalk(seed int64, basePrice float64) *RandomWalk {
	if basePrice <= 0 {
		basePrice = 45000
	}
	return &RandomWalk{seed: seed, basePrice: basePrice}
}

func (m *RandomWalk) Info() Info {
	return Info{Name: "dummy", Version: randomWalkVersion}
}

func (m *RandomWalk) Predict(ctx context.Context, req prediction.Request) (prediction.Result, error) {
	if err := ctx.Err(); err != nil {
		return prediction.Result{}, err
	}

	rng := rand.New(rand.NewSource(m.seed ^ requestSeed(req)))

	// Step volatility grows with the horizon: longer timeframes wander more.
	hours := req.Timeframe.Duration().Hours()
	volatility := 0.002 * math.Sqrt(hours)

	price := m.basePrice
	for i := 0; i < req.DataPoints; i++ {
		price += price * rng.NormFloat64() * volatility
		if price < 1 {
			price = 1
		}
	}

	confidence := 0.95 - 0.05*math.Log2(1+hours) - 0.1*rng.Float64()
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return prediction.Result{
		PredictedPrice:  math.Round(price*100) / 100,
		ConfidenceScore: confidence,
		ModelVersion:    randomWalkVersion,
		ComputedAt:      time.Now().UTC(),
	}, nil
}
