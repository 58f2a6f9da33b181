package mpc

import (
	"encoding/json"
	"fmt"

	"ShadowTrade/internal/domain/models"
)

// Schemas bind a ciphertext to the layout of its plaintext. They travel as
// associated data, so a payload cannot be replayed under another schema.
const (
	SchemaInput  = "rsi-strategy/v1/input"
	SchemaOutput = "rsi-strategy/v1/output"
)

// wireInput is the plaintext sealed into the input payload. It exists only
// between encode and encrypt.
type wireInput struct {
	Prices       []float64 `json:"p"`
	Period       int       `json:"n"`
	Oversold     float64   `json:"lo"`
	Overbought   float64   `json:"hi"`
	Balance      float64   `json:"b"`
	RiskFraction float64   `json:"r"`
}

type wireOutput struct {
	Indicator  float64 `json:"v"`
	Signal     uint8   `json:"s"`
	Confidence int     `json:"c"`
	Value      float64 `json:"pv"`
	Size       float64 `json:"ps"`
}

func encodeInput(window []float64, p models.StrategyParams) ([]byte, error) {
	return json.Marshal(wireInput{
		Prices:       window,
		Period:       p.Period,
		Oversold:     p.Oversold,
		Overbought:   p.Overbought,
		Balance:      p.Balance,
		RiskFraction: p.RiskFraction,
	})
}

func decodeInput(b []byte) ([]float64, models.StrategyParams, error) {
	var in wireInput
	if err := json.Unmarshal(b, &in); err != nil {
		return nil, models.StrategyParams{}, fmt.Errorf("decode input: %w", err)
	}
	return in.Prices, models.StrategyParams{
		Period:       in.Period,
		Oversold:     in.Oversold,
		Overbought:   in.Overbought,
		RiskFraction: in.RiskFraction,
		Balance:      in.Balance,
	}, nil
}

func encodeOutput(r models.ComputationResult) ([]byte, error) {
	return json.Marshal(wireOutput{
		Indicator:  r.IndicatorValue,
		Signal:     uint8(r.Signal),
		Confidence: r.Confidence,
		Value:      r.PositionValue,
		Size:       r.PositionSize,
	})
}

// decodeOutput does not validate; callers run ComputationResult.Validate.
func decodeOutput(b []byte) (models.ComputationResult, error) {
	var out wireOutput
	if err := json.Unmarshal(b, &out); err != nil {
		return models.ComputationResult{}, fmt.Errorf("%w: %v", models.ErrInvalidResult, err)
	}
	return models.ComputationResult{
		IndicatorValue: out.Indicator,
		Signal:         models.Signal(out.Signal),
		Confidence:     out.Confidence,
		PositionValue:  out.Value,
		PositionSize:   out.Size,
	}, nil
}
