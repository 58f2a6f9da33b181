package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ShadowTrade/internal/domain/models"
	domrepo "ShadowTrade/internal/domain/repository"
)

// SignalPipeline sits between a live session and the record publisher.
// It validates and throttles public signals, and buffers them while the
// downstream publisher is failing. Records pass straight through.
type SignalPipeline struct {
	next     domrepo.RecordPublisher
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan models.PublicSignal
	stopCh   chan struct{}
	done     chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-session last accepted time
}

type PipelineOption func(*SignalPipeline)

// WithMaxRPS sets the max signals per second per session.
func WithMaxRPS(n int) PipelineOption {
	return func(p *SignalPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the buffer used while downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *SignalPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func NewSignalPipeline(next domrepo.RecordPublisher, metrics domrepo.Metrics, opts ...PipelineOption) *SignalPipeline {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	p := &SignalPipeline{
		next:     next,
		metrics:  metrics,
		maxRPS:   5,
		bufSize:  256,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.PublicSignal, p.bufSize)
	return p
}

var _ domrepo.RecordPublisher = (*SignalPipeline)(nil)

// Start launches the background flush of buffered signals.
func (p *SignalPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.done)
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case s := <-p.bufCh:
				if err := p.next.PublishSignal(ctx, s); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					select {
					case <-time.After(backoff):
					case <-p.stopCh:
						return
					case <-ctx.Done():
						return
					}
					p.buffer(s)
					continue
				}
				backoff = 50 * time.Millisecond
			}
		}
	}()
}

// Close stops the flush loop. Buffered signals are dropped. The downstream
// publisher is not closed.
func (p *SignalPipeline) Close() error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.done
	if n := len(p.bufCh); n > 0 {
		p.metrics.RecordError("pipeline_buffer_drop")
	}
	return nil
}

// Buffered is the number of signals waiting for the downstream publisher.
func (p *SignalPipeline) Buffered() int { return len(p.bufCh) }

func (p *SignalPipeline) PublishRecord(ctx context.Context, r models.PublicRecord) error {
	return p.next.PublishRecord(ctx, r)
}

// PublishSignal validates, throttles and forwards s, buffering it when the
// downstream publisher fails.
func (p *SignalPipeline) PublishSignal(ctx context.Context, s models.PublicSignal) error {
	if err := validateSignal(s); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(s.SessionID, time.Now()) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}
	if err := p.next.PublishSignal(ctx, s); err != nil {
		p.metrics.RecordError("pipeline_publish")
		p.buffer(s)
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	return nil
}

func (p *SignalPipeline) buffer(s models.PublicSignal) {
	select {
	case p.bufCh <- s:
	default:
		p.metrics.RecordError("pipeline_buffer_full")
	}
}

func validateSignal(s models.PublicSignal) error {
	switch {
	case s.SessionID == "":
		return fmt.Errorf("signal without session")
	case s.Symbol == "":
		return fmt.Errorf("signal without symbol")
	case !s.Signal.Valid():
		return fmt.Errorf("unknown signal %d", s.Signal)
	case s.Confidence < 0 || s.Confidence > 100:
		return fmt.Errorf("confidence %d out of range", s.Confidence)
	case s.Timestamp.IsZero():
		return fmt.Errorf("signal without timestamp")
	}
	return nil
}

func (p *SignalPipeline) allow(session string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[session]
	if !last.IsZero() && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[session] = now
	return true
}
