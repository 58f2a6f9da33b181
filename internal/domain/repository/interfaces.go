package repository

import (
	"context"
	"time"

	"ShadowTrade/internal/domain/models"
)

// MarketData returns an ordered historical series, oldest first.
type MarketData interface {
	FetchCandles(ctx context.Context, symbol, interval string, count int) ([]models.PricePoint, error)
}

// KlineStream delivers closed candles for one symbol.
type KlineStream interface {
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.PricePoint, <-chan error)
	Close() error
	IsConnected() bool
}

// RecordStore persists public records.
type RecordStore interface {
	Init(ctx context.Context) error
	Save(ctx context.Context, r models.PublicRecord) error
	Get(ctx context.Context, sessionID string) (models.PublicRecord, error)
	Top(ctx context.Context, symbol string, limit int) ([]models.PublicRecord, error)
	Close() error
}

// RecordPublisher ships public records and signals to downstream consumers.
type RecordPublisher interface {
	PublishRecord(ctx context.Context, r models.PublicRecord) error
	PublishSignal(ctx context.Context, s models.PublicSignal) error
	Close() error
}

// SessionGuard enforces at most one in-flight computation per session.
// Acquire returns a release func, or models.ErrBusy.
type SessionGuard interface {
	Acquire(ctx context.Context, sessionID string) (release func(), err error)
}

// JobStore tracks queued backtests.
type JobStore interface {
	SetJob(ctx context.Context, st models.JobStatus) error
	GetJob(ctx context.Context, id string) (models.JobStatus, error)
}

// Metrics is implemented by pkg/metrics.Recorder.
type Metrics interface {
	RecordComputation(outcome string, latency time.Duration)
	RecordRetry()
	RecordBacktest(status string)
	RecordTrade(pnl float64)
	RecordSignal(symbol, signal string, confidence int)
	RecordFetch(source string, d time.Duration, err error)
	RecordError(kind string)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordComputation(string, time.Duration) {}
func (NopMetrics) RecordRetry() {}
func (NopMetrics) RecordBacktest(string) {}
func (NopMetrics) RecordTrade(float64) {}
func (NopMetrics) RecordSignal(string, string, int) {}
func (NopMetrics) RecordFetch(string, time.Duration, error) {}
func (NopMetrics) RecordError(string) {}
