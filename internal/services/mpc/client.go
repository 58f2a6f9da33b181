package mpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/domain/repository"
	"ShadowTrade/internal/domain/service"
	"ShadowTrade/pkg/logger"
)

// ClientConfig is the retry and timeout policy of a Client.
type ClientConfig struct {
	Timeout      time.Duration // per attempt, submit to finalization
	PollInterval time.Duration
	MaxRetries   int
	BackoffBase  time.Duration
	BackoffCap   time.Duration
}

func (c *ClientConfig) normalize() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 500 * time.Millisecond
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 200 * time.Millisecond
	}
	if c.BackoffCap < c.BackoffBase {
		c.BackoffCap = c.BackoffBase
	}
}

// Client evaluates the strategy inside the computation network. It never
// computes anything in plaintext itself.
type Client struct {
	network    service.ComputationNetwork
	clusterPub []byte
	guard      repository.SessionGuard
	metrics    repository.Metrics
	logger     *logger.Logger
	config     ClientConfig
	rand       io.Reader
}

type ClientOption func(*Client)

func WithGuard(g repository.SessionGuard) ClientOption {
	return func(c *Client) { c.guard = g }
}

func WithMetrics(m repository.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

// WithRand replaces crypto/rand as the source of key and nonce material.
func WithRand(r io.Reader) ClientOption {
	return func(c *Client) { c.rand = r }
}

func NewClient(network service.ComputationNetwork, clusterPub []byte, cfg ClientConfig, l *logger.Logger, opts ...ClientOption) *Client {
	cfg.normalize()
	c := &Client{
		network:    network,
		clusterPub: clusterPub,
		guard:      NewMemoryGuard(),
		metrics:    repository.NopMetrics{},
		logger:     l,
		config:     cfg,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ service.Evaluator = (*Client)(nil)

// Evaluate runs one computation for the session. A second call for a
// session that is still waiting fails with models.ErrBusy. Transport
// failures, timeouts, failed computations and invalid results are retried;
// once retries are exhausted the error wraps models.ErrComputationUnavailable.
func (c *Client) Evaluate(ctx context.Context, sessionID string, window []float64, params models.StrategyParams) (models.ComputationResult, error) {
	if err := params.Validate(); err != nil {
		return models.ComputationResult{}, err
	}
	if len(window) != params.WindowLen() {
		return models.ComputationResult{}, &models.DataError{Index: -1, Reason: fmt.Sprintf("window holds %d closes, need %d", len(window), params.WindowLen())}
	}
	plaintext, err := encodeInput(window, params)
	if err != nil {
		return models.ComputationResult{}, fmt.Errorf("encode input: %w", err)
	}

	release, err := c.guard.Acquire(ctx, sessionID)
	if err != nil {
		c.metrics.RecordComputation("busy", 0)
		return models.ComputationResult{}, err
	}
	defer release()

	var last error
	attempts := c.config.MaxRetries + 1
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			c.metrics.RecordRetry()
			if err := sleepCtx(ctx, c.backoff(attempt)); err != nil {
				return models.ComputationResult{}, err
			}
		}

		start := time.Now()
		res, err := c.attempt(ctx, sessionID, plaintext)
		latency := time.Since(start)
		if err == nil {
			c.metrics.RecordComputation("success", latency)
			return res, nil
		}
		if ctx.Err() != nil {
			c.metrics.RecordComputation("canceled", latency)
			return models.ComputationResult{}, ctx.Err()
		}

		c.metrics.RecordComputation(outcome(err), latency)
		c.logger.Warn("computation attempt failed",
			logger.String("session_id", sessionID),
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", attempts),
			logger.Duration("latency", latency),
			logger.Error(err),
		)
		last = err
	}

	return models.ComputationResult{}, &models.UnavailableError{Attempts: attempts, Last: last}
}

// attempt encrypts under fresh keys, submits, and waits for finalization.
func (c *Client) attempt(ctx context.Context, sessionID string, plaintext []byte) (models.ComputationResult, error) {
	ex, err := NewClientExchange(c.clusterPub, c.rand)
	if err != nil {
		return models.ComputationResult{}, err
	}
	payload, err := ex.SealInput(SchemaInput, plaintext)
	if err != nil {
		return models.ComputationResult{}, err
	}

	actx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	id, err := c.network.Submit(actx, payload)
	if err != nil {
		return models.ComputationResult{}, c.timeoutOr(ctx, actx, fmt.Errorf("submit: %w", err))
	}
	req := models.NewComputationRequest(id, sessionID, payload, time.Now())

	ticker := time.NewTicker(c.config.PollInterval)
	defer ticker.Stop()
	for {
		pr, err := c.network.Poll(actx, id)
		if err != nil {
			return models.ComputationResult{}, c.timeoutOr(ctx, actx, fmt.Errorf("poll %s: %w", id, err))
		}
		switch pr.Status {
		case models.StatusFinalized, models.StatusFailed:
			if err := req.Advance(pr.Status, time.Now()); err != nil {
				return models.ComputationResult{}, err
			}
			c.logger.Debug("computation finished",
				logger.String("id", req.ID),
				logger.String("session_id", req.SessionID),
				logger.String("status", string(req.Status)),
				logger.Duration("latency", req.Latency()),
			)
			if req.Status == models.StatusFailed {
				return models.ComputationResult{}, fmt.Errorf("computation %s failed: %s", id, pr.Reason)
			}
			return c.open(ex, pr.Output)
		case models.StatusPending:
		default:
			return models.ComputationResult{}, fmt.Errorf("%w: unknown status %q", models.ErrInvalidResult, pr.Status)
		}

		select {
		case <-ticker.C:
		case <-actx.Done():
			return models.ComputationResult{}, c.timeoutOr(ctx, actx, actx.Err())
		}
	}
}

func (c *Client) open(ex *Exchange, out *models.EncryptedPayload) (models.ComputationResult, error) {
	if out == nil || out.Schema != SchemaOutput {
		return models.ComputationResult{}, fmt.Errorf("%w: missing or mismatched output", models.ErrInvalidResult)
	}
	plaintext, err := ex.OpenOutput(*out)
	if err != nil {
		return models.ComputationResult{}, fmt.Errorf("%w: %v", models.ErrInvalidResult, err)
	}
	res, err := decodeOutput(plaintext)
	if err != nil {
		return models.ComputationResult{}, err
	}
	if err := res.Validate(); err != nil {
		return models.ComputationResult{}, err
	}
	return res, nil
}

// timeoutOr maps an expired attempt deadline to ErrComputationTimeout while
// leaving caller cancellation untouched.
func (c *Client) timeoutOr(parent, attempt context.Context, err error) error {
	if parent.Err() == nil && errors.Is(attempt.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", models.ErrComputationTimeout, c.config.Timeout)
	}
	return err
}

// backoff returns base*2^(attempt-1), capped.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.config.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= c.config.BackoffCap {
			return c.config.BackoffCap
		}
	}
	if d > c.config.BackoffCap {
		return c.config.BackoffCap
	}
	return d
}

func outcome(err error) string {
	switch {
	case errors.Is(err, models.ErrComputationTimeout):
		return "timeout"
	case errors.Is(err, models.ErrInvalidResult):
		return "invalid"
	default:
		return "failed"
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
