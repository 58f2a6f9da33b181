package models

import "math"

// StrategyParams are the hidden strategy parameters. They are encrypted
// before leaving the process and refuse JSON serialization.
type StrategyParams struct {
	Period        int
	Oversold      float64
	Overbought    float64
	RiskFraction  float64
	MinConfidence int
	// Balance is the cash available at evaluation time, set per window.
	Balance float64
}

func (StrategyParams) MarshalJSON() ([]byte, error) { return nil, ErrPrivateField }

// String never prints the thresholds.
func (p StrategyParams) String() string { return "StrategyParams{redacted}" }

// WithBalance returns a copy carrying the given cash balance.
func (p StrategyParams) WithBalance(balance float64) StrategyParams {
	p.Balance = balance
	return p
}

// WindowLen is the number of closes one evaluation needs.
func (p StrategyParams) WindowLen() int { return p.Period + 1 }

// Validate returns a ConfigurationError for the first violated constraint.
func (p StrategyParams) Validate() error {
	switch {
	case p.Period < 2:
		return &ConfigurationError{Field: "period", Reason: "must be >= 2"}
	case math.IsNaN(p.Oversold) || math.IsNaN(p.Overbought):
		return &ConfigurationError{Field: "thresholds", Reason: "must be numbers"}
	case p.Oversold < 0 || p.Overbought > 100:
		return &ConfigurationError{Field: "thresholds", Reason: "must lie in [0,100]"}
	case p.Oversold >= p.Overbought:
		return &ConfigurationError{Field: "thresholds", Reason: "oversold must be < overbought"}
	case !(p.RiskFraction > 0 && p.RiskFraction <= 1):
		return &ConfigurationError{Field: "risk_fraction", Reason: "must lie in (0,1]"}
	case p.MinConfidence < 0 || p.MinConfidence > 100:
		return &ConfigurationError{Field: "min_confidence", Reason: "must lie in [0,100]"}
	}
	return nil
}
