package strategy

import (
	"fmt"
	"math"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/services/features"
)

// Size returns the notional to commit and the matching quantity at price.
func Size(balance, riskFraction, price float64) (value, size float64, err error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, 0, fmt.Errorf("%w: %v", models.ErrInvalidPrice, price)
	}
	if !(riskFraction > 0 && riskFraction <= 1) {
		return 0, 0, &models.ConfigurationError{Field: "risk_fraction", Reason: "must lie in (0,1]"}
	}
	if balance < 0 {
		balance = 0
	}
	value = balance * riskFraction
	return value, value / price, nil
}

// Evaluate runs the whole decision in plaintext: oscillator, signal and size.
// Only the computation network and its simulator call it.
func Evaluate(window []float64, p models.StrategyParams) (models.ComputationResult, error) {
	if len(window) == 0 {
		return models.ComputationResult{}, &models.DataError{Index: -1, Reason: "empty window"}
	}
	v := features.RSI(window, p.Period)
	sig, conf := Decide(v, p.Oversold, p.Overbought)
	value, size, err := Size(p.Balance, p.RiskFraction, window[len(window)-1])
	if err != nil {
		return models.ComputationResult{}, err
	}
	return models.ComputationResult{
		IndicatorValue: v,
		Signal:         sig,
		Confidence:     conf,
		PositionValue:  value,
		PositionSize:   size,
	}, nil
}
