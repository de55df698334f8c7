package model

import (
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// LoadHistory reads a price series from a JSON document. Three shapes are
// accepted: a bare array of prices, {"prices": [...]}, or
// {"candles": [{"close": ...}, ...]}.
func LoadHistory(path string) ([]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("history file %s is not valid JSON", path)
	}

	doc := gjson.ParseBytes(data)

	var values gjson.Result
	switch {
	case doc.IsArray():
		values = doc
	case doc.Get("prices").IsArray():
		values = doc.Get("prices")
	case doc.Get("candles").IsArray():
		values = doc.Get("candles.#.close")
	default:
		return nil, fmt.Errorf("history file %s: expected an array, prices, or candles", path)
	}

	var series []float64
	values.ForEach(func(_, value gjson.Result) bool {
		series = append(series, value.Float())
		return true
	})
	if len(series) == 0 {
		return nil, fmt.Errorf("history file %s contains no prices", path)
	}
	return series, nil
}
