package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShadowTrade/internal/domain/models"
)

type flakyPublisher struct {
	mu      sync.Mutex
	fail    bool
	signals []models.PublicSignal
	records int
}

func (f *flakyPublisher) PublishRecord(context.Context, models.PublicRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records++
	return nil
}

func (f *flakyPublisher) PublishSignal(_ context.Context, s models.PublicSignal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broker down")
	}
	f.signals = append(f.signals, s)
	return nil
}

func (f *flakyPublisher) Close() error { return nil }

func (f *flakyPublisher) setFail(v bool) {
	f.mu.Lock()
	f.fail = v
	f.mu.Unlock()
}

func (f *flakyPublisher) delivered() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.signals)
}

func signal(session string) models.PublicSignal {
	return models.PublicSignal{SessionID: session, Symbol: "BTCUSDT", Signal: models.Buy, Confidence: 80, Timestamp: time.Now()}
}

func TestSignalPipelineRejectsInvalidSignals(t *testing.T) {
	p := NewSignalPipeline(&flakyPublisher{}, nil)

	bad := signal("s-1")
	bad.Confidence = 101
	assert.Error(t, p.PublishSignal(context.Background(), bad))

	bad = signal("")
	assert.Error(t, p.PublishSignal(context.Background(), bad))

	bad = signal("s-1")
	bad.Signal = models.Signal(9)
	assert.Error(t, p.PublishSignal(context.Background(), bad))
}

func TestSignalPipelineThrottlesPerSession(t *testing.T) {
	next := &flakyPublisher{}
	p := NewSignalPipeline(next, nil, WithMaxRPS(1))

	require.NoError(t, p.PublishSignal(context.Background(), signal("s-1")))
	require.NoError(t, p.PublishSignal(context.Background(), signal("s-1")))
	require.NoError(t, p.PublishSignal(context.Background(), signal("s-2")))
	assert.Equal(t, 2, next.delivered())
}

func TestSignalPipelineBuffersWhileDownstreamFails(t *testing.T) {
	next := &flakyPublisher{fail: true}
	p := NewSignalPipeline(next, nil, WithMaxRPS(1000), WithBufferSize(4))

	assert.Error(t, p.PublishSignal(context.Background(), signal("s-1")))
	assert.Equal(t, 1, p.Buffered())

	next.setFail(false)
	p.Start(context.Background())
	defer p.Close()

	assert.Eventually(t, func() bool { return next.delivered() == 1 }, time.Second, 5*time.Millisecond)
}

func TestSignalPipelinePassesRecordsThrough(t *testing.T) {
	next := &flakyPublisher{}
	p := NewSignalPipeline(next, nil)
	require.NoError(t, p.PublishRecord(context.Background(), models.PublicRecord{SessionID: "s-1"}))
	assert.Equal(t, 1, next.records)
	assert.NoError(t, p.Close())
}
