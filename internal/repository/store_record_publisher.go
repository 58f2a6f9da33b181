package repository

import (
	"context"

	"ShadowTrade/internal/domain/models"
	domrepo "ShadowTrade/internal/domain/repository"
	applogger "ShadowTrade/pkg/logger"
)

// StoreRecordPublisher writes records straight to a RecordStore when no
// broker is configured. Signals are only logged.
type StoreRecordPublisher struct {
	store domrepo.RecordStore
	l     *applogger.Logger
}

func NewStoreRecordPublisher(store domrepo.RecordStore, l *applogger.Logger) *StoreRecordPublisher {
	return &StoreRecordPublisher{store: store, l: l}
}

var _ domrepo.RecordPublisher = (*StoreRecordPublisher)(nil)

func (p *StoreRecordPublisher) PublishRecord(ctx context.Context, r models.PublicRecord) error {
	return p.store.Save(ctx, r)
}

func (p *StoreRecordPublisher) PublishSignal(_ context.Context, s models.PublicSignal) error {
	p.l.Info("signal",
		applogger.String("session_id", s.SessionID),
		applogger.String("symbol", s.Symbol),
		applogger.String("signal", s.Signal.String()),
		applogger.Int("confidence", s.Confidence),
	)
	return nil
}

func (p *StoreRecordPublisher) Close() error { return nil }
