package strategy

import (
	"math"

	"ShadowTrade/internal/domain/models"
)

// Decide maps an oscillator value and thresholds to a signal and a confidence
// in [0,100]. Both thresholds are exclusive: v == oversold is Hold.
func Decide(v, oversold, overbought float64) (models.Signal, int) {
	switch {
	case v < oversold:
		if oversold == 0 {
			return models.Buy, 100
		}
		return models.Buy, clampConfidence((oversold - v) / oversold * 100)
	case v > overbought:
		if overbought == 100 {
			return models.Sell, 100
		}
		return models.Sell, clampConfidence((v - overbought) / (100 - overbought) * 100)
	default:
		return models.Hold, clampConfidence(50 - math.Abs(v-50))
	}
}

func clampConfidence(x float64) int {
	if math.IsNaN(x) {
		return 0
	}
	c := math.Round(x)
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return int(c)
}
