package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Signal is the trading decision produced inside the computation network.
type Signal uint8

const (
	Hold Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Hold:
		return "HOLD"
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return fmt.Sprintf("Signal(%d)", uint8(s))
	}
}

// Valid reports whether s is one of Hold, Buy, Sell.
func (s Signal) Valid() bool { return s <= Sell }

func (s Signal) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid signal %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Signal) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "HOLD":
		*s = Hold
	case "BUY":
		*s = Buy
	case "SELL":
		*s = Sell
	default:
		return fmt.Errorf("invalid signal %q", b)
	}
	return nil
}

// EncryptedPayload is an opaque ciphertext bound for, or returned by, the
// computation network.
type EncryptedPayload struct {
	Schema          string `json:"schema"`
	ClientPublicKey []byte `json:"client_public_key"`
	Nonce           []byte `json:"nonce"`
	Ciphertext      []byte `json:"ciphertext"`
}

// ComputationStatus is the lifecycle of a submitted request.
type ComputationStatus string

const (
	StatusPending   ComputationStatus = "pending"
	StatusFinalized ComputationStatus = "finalized"
	StatusFailed    ComputationStatus = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s ComputationStatus) Terminal() bool {
	return s == StatusFinalized || s == StatusFailed
}

// ComputationRequest tracks one submission from Pending to a terminal status.
type ComputationRequest struct {
	ID          string
	SessionID   string
	Payload     EncryptedPayload
	SubmittedAt time.Time
	FinishedAt  time.Time
	Status      ComputationStatus
}

// NewComputationRequest records a submission accepted by the network.
func NewComputationRequest(id, sessionID string, payload EncryptedPayload, at time.Time) *ComputationRequest {
	return &ComputationRequest{ID: id, SessionID: sessionID, Payload: payload, SubmittedAt: at, Status: StatusPending}
}

// Advance moves the request to s. A terminal request never changes again.
func (r *ComputationRequest) Advance(s ComputationStatus, at time.Time) error {
	if r.Status.Terminal() {
		return fmt.Errorf("computation %s is already %s", r.ID, r.Status)
	}
	r.Status = s
	if s.Terminal() {
		r.FinishedAt = at
	}
	return nil
}

// Latency is the time from submission to the terminal status, zero while pending.
func (r *ComputationRequest) Latency() time.Duration {
	if !r.Status.Terminal() {
		return 0
	}
	return r.FinishedAt.Sub(r.SubmittedAt)
}

// PollResult is the network's answer to a poll.
type PollResult struct {
	Status ComputationStatus `json:"status"`
	Output *EncryptedPayload `json:"output,omitempty"`
	Reason string            `json:"reason,omitempty"`
}

// ComputationResult is the decrypted output. Only Signal and Confidence may
// cross the public boundary, through Public.
type ComputationResult struct {
	IndicatorValue float64
	Signal         Signal
	Confidence     int
	PositionValue  float64
	PositionSize   float64
}

func (ComputationResult) MarshalJSON() ([]byte, error) { return nil, ErrPrivateField }

func (r ComputationResult) String() string {
	return fmt.Sprintf("ComputationResult{Signal:%s Confidence:%d}", r.Signal, r.Confidence)
}

// Validate rejects out-of-range outputs instead of coercing them.
func (r ComputationResult) Validate() error {
	switch {
	case !r.Signal.Valid():
		return fmt.Errorf("%w: signal %d", ErrInvalidResult, r.Signal)
	case r.Confidence < 0 || r.Confidence > 100:
		return fmt.Errorf("%w: confidence %d", ErrInvalidResult, r.Confidence)
	case !finite(r.IndicatorValue) || r.IndicatorValue < 0 || r.IndicatorValue > 100:
		return fmt.Errorf("%w: indicator out of range", ErrInvalidResult)
	case !finite(r.PositionValue) || r.PositionValue < 0:
		return fmt.Errorf("%w: position value", ErrInvalidResult)
	case !finite(r.PositionSize) || r.PositionSize < 0:
		return fmt.Errorf("%w: position size", ErrInvalidResult)
	}
	return nil
}

// Public strips everything but the decision.
func (r ComputationResult) Public(sessionID, symbol string, at time.Time) PublicSignal {
	return PublicSignal{
		SessionID:  sessionID,
		Symbol:     symbol,
		Signal:     r.Signal,
		Confidence: r.Confidence,
		Timestamp:  at,
	}
}

func finite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
