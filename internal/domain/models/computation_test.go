package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputationRequestLifecycle(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	req := NewComputationRequest("c-1", "s-1", EncryptedPayload{Schema: "x"}, at)
	assert.Equal(t, StatusPending, req.Status)
	assert.Zero(t, req.Latency())

	require.NoError(t, req.Advance(StatusPending, at.Add(time.Second)))
	assert.Zero(t, req.Latency())

	require.NoError(t, req.Advance(StatusFinalized, at.Add(3*time.Second)))
	assert.Equal(t, 3*time.Second, req.Latency())

	assert.Error(t, req.Advance(StatusFailed, at.Add(4*time.Second)))
	assert.Equal(t, StatusFinalized, req.Status)
	assert.Equal(t, 3*time.Second, req.Latency())
}

func TestComputationStatusTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusFinalized.Terminal())
	assert.True(t, StatusFailed.Terminal())
}

func TestBusyIsNotAbsorbed(t *testing.T) {
	assert.True(t, IsComputationError(&UnavailableError{Attempts: 2, Last: errors.New("down")}))
	assert.True(t, IsComputationError(ErrComputationTimeout))
	assert.True(t, IsComputationError(ErrInvalidResult))
	assert.False(t, IsComputationError(ErrBusy))
}

func TestPositionMovePct(t *testing.T) {
	p := &Position{EntryPrice: 200}
	assert.InDelta(t, 5, p.MovePct(210), 1e-9)
	assert.InDelta(t, -10, p.MovePct(180), 1e-9)
	assert.Zero(t, (&Position{}).MovePct(100))
}
