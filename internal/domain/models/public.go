package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PublicSignal is the only form in which a decision leaves the process.
type PublicSignal struct {
	SessionID  string    `json:"session_id"`
	Symbol     string    `json:"symbol"`
	Signal     Signal    `json:"signal"`
	Confidence int       `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}

// PublicRecord is the auditable performance record written after a run.
// It never carries indicator values, thresholds, period, balance or sizes.
type PublicRecord struct {
	SessionID   string    `json:"session_id"`
	Symbol      string    `json:"symbol"`
	TotalReturn float64   `json:"total_return"`
	WinRate     float64   `json:"win_rate"`
	MaxDrawdown float64   `json:"max_drawdown"`
	TotalTrades int       `json:"total_trades"`
	Timestamp   time.Time `json:"timestamp"`
}

// PerformanceBasis is the record in integer basis points, the form the
// on-chain performance account stores.
type PerformanceBasis struct {
	TotalReturnBps int64 `json:"total_return_bps"`
	WinRateBps     int64 `json:"win_rate_bps"`
	MaxDrawdownBps int64 `json:"max_drawdown_bps"`
	TotalTrades    int64 `json:"total_trades"`
}

// Basis converts percentages to basis points with half-away-from-zero rounding.
func (r PublicRecord) Basis() PerformanceBasis {
	return PerformanceBasis{
		TotalReturnBps: percentToBps(r.TotalReturn),
		WinRateBps:     percentToBps(r.WinRate),
		MaxDrawdownBps: percentToBps(r.MaxDrawdown),
		TotalTrades:    int64(r.TotalTrades),
	}
}

var hundred = decimal.NewFromInt(100)

func percentToBps(pct float64) int64 {
	return decimal.NewFromFloat(pct).Mul(hundred).Round(0).IntPart()
}
