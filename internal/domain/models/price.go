package models

import (
	"math"
	"time"
)

// PricePoint is one OHLCV candle.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// ValidateSeries checks that a series can be replayed: at least minLen points,
// finite positive closes and strictly increasing timestamps.
func ValidateSeries(series []PricePoint, minLen int) error {
	if len(series) == 0 {
		return &DataError{Index: -1, Reason: "empty series"}
	}
	if len(series) < minLen {
		return &DataError{Index: -1, Reason: "series shorter than one evaluation window"}
	}
	for i, p := range series {
		if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) || p.Close <= 0 {
			return &DataError{Index: i, Reason: "close must be a positive finite number"}
		}
		if i > 0 && !p.Timestamp.After(series[i-1].Timestamp) {
			return &DataError{Index: i, Reason: "timestamps must be strictly increasing"}
		}
	}
	return nil
}
