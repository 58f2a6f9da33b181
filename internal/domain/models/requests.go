package models

// Requests for the HTTP API and the job queue. Strategy overrides are
// accepted on the way in but never echoed back.

type BacktestRequest struct {
	Symbol   string `json:"symbol" validate:"required,uppercase,alphanum,max=20"`
	Interval string `json:"interval" default:"1h" validate:"oneof=1m 3m 5m 15m 30m 1h 2h 4h 6h 12h 1d"`
	Count    int    `json:"count" default:"500" validate:"gte=16,lte=1000"`

	Period        *int     `json:"period,omitempty" validate:"omitempty,gte=2,lte=200"`
	Oversold      *float64 `json:"oversold,omitempty" validate:"omitempty,gte=0,lte=100"`
	Overbought    *float64 `json:"overbought,omitempty" validate:"omitempty,gte=0,lte=100"`
	RiskFraction  *float64 `json:"risk_fraction,omitempty" validate:"omitempty,gt=0,lte=1"`
	MinConfidence *int     `json:"min_confidence,omitempty" validate:"omitempty,gte=0,lte=100"`
}

// Apply overlays the request's overrides on base.
func (r *BacktestRequest) Apply(base StrategyParams) StrategyParams {
	if r.Period != nil {
		base.Period = *r.Period
	}
	if r.Oversold != nil {
		base.Oversold = *r.Oversold
	}
	if r.Overbought != nil {
		base.Overbought = *r.Overbought
	}
	if r.RiskFraction != nil {
		base.RiskFraction = *r.RiskFraction
	}
	if r.MinConfidence != nil {
		base.MinConfidence = *r.MinConfidence
	}
	return base
}

type LeaderboardRequest struct {
	Symbol string `query:"symbol" validate:"omitempty,uppercase,alphanum,max=20"`
	Limit  int    `query:"limit" default:"20" validate:"gte=1,lte=100"`
}

// JobStatus tracks a queued backtest.
type JobStatus struct {
	ID        string        `json:"id"`
	Status    string        `json:"status"` // queued, running, completed, aborted
	SessionID string        `json:"session_id,omitempty"`
	Error     string        `json:"error,omitempty"`
	Record    *PublicRecord `json:"record,omitempty"`
}

const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobAborted   = "aborted"
)
