package mpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/domain/service"
	"ShadowTrade/pkg/logger"
)

// BreakerNetwork trips after consecutive transport failures.
// Caller cancellation and unknown ids do not count against it.
type BreakerNetwork struct {
	next service.ComputationNetwork
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerNetwork(next service.ComputationNetwork, consecutiveFailures uint32, openTimeout time.Duration, l *logger.Logger) *BreakerNetwork {
	if consecutiveFailures == 0 {
		consecutiveFailures = 5
	}
	st := gobreaker.Settings{Name: "mpc-network", Timeout: openTimeout}
	st.ReadyToTrip = func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= consecutiveFailures }
	st.IsSuccessful = func(err error) bool {
		return err == nil ||
			errors.Is(err, context.Canceled) ||
			errors.Is(err, models.ErrNotFound)
	}
	st.OnStateChange = func(name string, from, to gobreaker.State) {
		l.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	}
	return &BreakerNetwork{next: next, cb: gobreaker.NewCircuitBreaker(st)}
}

var _ service.ComputationNetwork = (*BreakerNetwork)(nil)

func (b *BreakerNetwork) Submit(ctx context.Context, payload models.EncryptedPayload) (string, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Submit(ctx, payload)
	})
	if err != nil {
		return "", b.wrap(err)
	}
	return v.(string), nil
}

func (b *BreakerNetwork) Poll(ctx context.Context, id string) (models.PollResult, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Poll(ctx, id)
	})
	if err != nil {
		return models.PollResult{}, b.wrap(err)
	}
	return v.(models.PollResult), nil
}

// State exposes the breaker state for health reporting.
func (b *BreakerNetwork) State() string { return b.cb.State().String() }

func (b *BreakerNetwork) wrap(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("mpc network: %w", err)
	}
	return err
}
