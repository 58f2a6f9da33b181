package models

import "time"

// RunStatus is the backtest driver state.
type RunStatus string

const (
	RunIdle      RunStatus = "idle"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunAborted   RunStatus = "aborted"
)

// ComputationMetrics summarizes the computation outcomes of a run.
type ComputationMetrics struct {
	Total          int
	Succeeded      int
	Failed         int
	AvgLatency     time.Duration
	AvgConfidence  float64
	BuySignals     int
	SellSignals    int
	HoldSignals    int
	HighConfidence int // confidence > 70
}

// BacktestReport is built once at the end of a completed run.
type BacktestReport struct {
	SessionID      string
	Symbol         string
	Interval       string
	InitialBalance float64
	FinalBalance   float64
	TotalReturn    float64 // percent
	TotalPnL       float64
	WinRate        float64 // percent
	SharpeRatio    *float64
	MaxDrawdown    float64 // percent of peak
	TotalTrades    int
	WinningTrades  int
	LosingTrades   int
	AvgWin         float64
	AvgLoss        float64
	ProfitFactor   *float64 // nil without losing trades
	AvgTradeHours  float64
	Trades         []Trade
	Computation    ComputationMetrics
	StartedAt      time.Time
	FinishedAt     time.Time
}

// MarshalJSON refuses to serialize: the report carries balances, trade
// sizes and the per-window ledger.
func (BacktestReport) MarshalJSON() ([]byte, error) { return nil, ErrPrivateField }

// PublicRecord strips the report down to what may be published.
func (r *BacktestReport) PublicRecord() PublicRecord {
	return PublicRecord{
		SessionID:   r.SessionID,
		Symbol:      r.Symbol,
		TotalReturn: r.TotalReturn,
		WinRate:     r.WinRate,
		MaxDrawdown: r.MaxDrawdown,
		TotalTrades: r.TotalTrades,
		Timestamp:   r.FinishedAt,
	}
}
