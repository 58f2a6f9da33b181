package models

import "time"

// Side of a simulated trade. Only long positions are opened.
type Side string

const (
	SideLong Side = "long"
)

// ExitReason says what closed a trade.
type ExitReason string

const (
	ExitSignal      ExitReason = "signal"
	ExitStopLoss    ExitReason = "stop_loss"
	ExitTakeProfit  ExitReason = "take_profit"
	ExitEndOfSeries ExitReason = "end_of_series"
)

// Trade is a closed round trip in the simulated ledger.
type Trade struct {
	EntryTime  time.Time
	ExitTime   time.Time
	EntryPrice float64
	ExitPrice  float64
	Size       float64
	Side       Side
	Fees       float64
	PnL        float64
	Exit       ExitReason
}

// Position is the open long, if any.
type Position struct {
	EntryTime  time.Time
	EntryPrice float64
	Size       float64
	Cost       float64 // cash debited, fees included
	EntryFee   float64
}

// MovePct is the price move since entry, in percent.
func (p *Position) MovePct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (price - p.EntryPrice) / p.EntryPrice * 100
}

// EquityPoint is cash plus marked-to-market position after one window.
type EquityPoint struct {
	Timestamp time.Time
	Balance   float64
}

// Ledger is the simulated account of a single run. It holds position sizes
// and balances, so it refuses JSON serialization.
type Ledger struct {
	Cash     float64
	Position *Position
	Trades   []Trade
	Equity   []EquityPoint
}

func (Ledger) MarshalJSON() ([]byte, error) { return nil, ErrPrivateField }

// MarkToMarket returns cash plus the open position valued at price.
func (l *Ledger) MarkToMarket(price float64) float64 {
	if l.Position == nil {
		return l.Cash
	}
	return l.Cash + l.Position.Size*price
}
