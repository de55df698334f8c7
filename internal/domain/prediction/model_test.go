package prediction

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/satyarajmoily/market-predictor/internal/errors"
)

func TestTimeframe_Duration(t *testing.T) {
	cases := map[Timeframe]time.Duration{
		Timeframe1h:     time.Hour,
		Timeframe4h:     4 * time.Hour,
		Timeframe1d:     24 * time.Hour,
		Timeframe("2w"): 0,
		Timeframe(""):   0,
	}
	for tf, want := range cases {
		if got := tf.Duration(); got != want {
			t.Fatalf("%q.Duration() = %v, want %v", tf, got, want)
		}
	}
}

func TestRequest_Normalize(t *testing.T) {
	req := Request{Timeframe: "  1H ", DataPoints: 10}
	norm := req.Normalize()
	if norm.Timeframe != Timeframe1h {
		t.Fatalf("expected canonical 1h, got %q", norm.Timeframe)
	}
	// The receiver is untouched.
	if req.Timeframe != "  1H " {
		t.Fatalf("normalize mutated the original request")
	}
}

func TestRequest_Validate(t *testing.T) {
	valid := Request{Timeframe: Timeframe1h, DataPoints: 100}
	if err := valid.Validate(1000); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	cases := []Request{
		{Timeframe: "2w", DataPoints: 100},
		{Timeframe: Timeframe1h, DataPoints: 0},
		{Timeframe: Timeframe1h, DataPoints: -1},
		{Timeframe: Timeframe1h, DataPoints: 1001},
	}
	for _, req := range cases {
		err := req.Validate(1000)
		if !errors.IsValidation(err) {
			t.Fatalf("request %+v: expected validation error, got %v", req, err)
		}
	}
}

func TestResponse_ConfidenceOmission(t *testing.T) {
	resp := Response{
		PredictedPrice:      45123.5,
		PredictionTimestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		ModelVersion:        "dummy-v1",
		Timeframe:           Timeframe1h,
	}
	body, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(body), "confidence_score") {
		t.Fatalf("nil confidence must be omitted: %s", body)
	}

	score := 0.87
	resp.ConfidenceScore = &score
	body, err = json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal with confidence: %v", err)
	}
	if !strings.Contains(string(body), `"confidence_score":0.87`) {
		t.Fatalf("confidence missing: %s", body)
	}
}
