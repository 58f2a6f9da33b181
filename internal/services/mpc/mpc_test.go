package mpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/domain/repository"
	"ShadowTrade/pkg/logger"
)

type countingMetrics struct {
	repository.NopMetrics
	mu       sync.Mutex
	outcomes map[string]int
	retries  int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{outcomes: make(map[string]int)}
}

func (m *countingMetrics) RecordComputation(outcome string, _ time.Duration) {
	m.mu.Lock()
	m.outcomes[outcome]++
	m.mu.Unlock()
}

func (m *countingMetrics) RecordRetry() {
	m.mu.Lock()
	m.retries++
	m.mu.Unlock()
}

func testParams() models.StrategyParams {
	return models.StrategyParams{Period: 14, Oversold: 30, Overbought: 70, RiskFraction: 0.1, Balance: 10000}
}

func ascending(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + float64(i)
	}
	return out
}

func fastConfig() ClientConfig {
	return ClientConfig{
		Timeout:      time.Second,
		PollInterval: time.Millisecond,
		MaxRetries:   3,
		BackoffBase:  time.Millisecond,
		BackoffCap:   4 * time.Millisecond,
	}
}

func newSimClient(t *testing.T, cfg ClientConfig, simOpts []SimulatorOption, opts ...ClientOption) (*Client, *Simulator) {
	t.Helper()
	kp, err := GenerateKeyPair(nil)
	require.NoError(t, err)
	sim := NewSimulator(kp, logger.Nop(), simOpts...)
	return NewClient(sim, sim.PublicKey(), cfg, logger.Nop(), opts...), sim
}

func TestExchangeRoundTrip(t *testing.T) {
	cluster, err := GenerateKeyPair(nil)
	require.NoError(t, err)

	client, err := NewClientExchange(cluster.Public, nil)
	require.NoError(t, err)
	in, err := client.SealInput(SchemaInput, []byte("window"))
	require.NoError(t, err)

	server, err := NewClusterExchange(cluster, in.ClientPublicKey, nil)
	require.NoError(t, err)
	pt, err := server.OpenInput(in)
	require.NoError(t, err)
	assert.Equal(t, "window", string(pt))

	out, err := server.SealOutput(SchemaOutput, []byte("result"))
	require.NoError(t, err)
	pt, err = client.OpenOutput(out)
	require.NoError(t, err)
	assert.Equal(t, "result", string(pt))

	// The output key is not the input key.
	_, err = server.OpenInput(out)
	assert.Error(t, err)
}

func TestExchangeRejectsTamperingAndSchemaSwap(t *testing.T) {
	cluster, err := GenerateKeyPair(nil)
	require.NoError(t, err)
	client, err := NewClientExchange(cluster.Public, nil)
	require.NoError(t, err)
	in, err := client.SealInput(SchemaInput, []byte("window"))
	require.NoError(t, err)
	server, err := NewClusterExchange(cluster, in.ClientPublicKey, nil)
	require.NoError(t, err)

	swapped := in
	swapped.Schema = SchemaOutput
	_, err = server.OpenInput(swapped)
	assert.Error(t, err)

	flipped := in
	flipped.Ciphertext = append([]byte(nil), in.Ciphertext...)
	flipped.Ciphertext[0] ^= 1
	_, err = server.OpenInput(flipped)
	assert.Error(t, err)

	short := in
	short.Nonce = in.Nonce[:12]
	_, err = server.OpenInput(short)
	assert.Error(t, err)
}

func TestIdenticalInputsAreUnlinkable(t *testing.T) {
	cluster, err := GenerateKeyPair(nil)
	require.NoError(t, err)
	pt, err := encodeInput(ascending(15), testParams())
	require.NoError(t, err)

	seal := func() models.EncryptedPayload {
		ex, err := NewClientExchange(cluster.Public, nil)
		require.NoError(t, err)
		p, err := ex.SealInput(SchemaInput, pt)
		require.NoError(t, err)
		return p
	}
	a, b := seal(), seal()
	assert.False(t, bytes.Equal(a.Ciphertext, b.Ciphertext))
	assert.False(t, bytes.Equal(a.Nonce, b.Nonce))
	assert.False(t, bytes.Equal(a.ClientPublicKey, b.ClientPublicKey))
}

func TestParsePublicKey(t *testing.T) {
	kp, err := GenerateKeyPair(nil)
	require.NoError(t, err)
	got, err := ParsePublicKey(hex.EncodeToString(kp.Public))
	require.NoError(t, err)
	assert.Equal(t, kp.Public, got)

	_, err = ParsePublicKey("abcd")
	assert.Error(t, err)
	_, err = ParsePublicKey("zz")
	assert.Error(t, err)
}

func TestEvaluateThroughSimulator(t *testing.T) {
	metrics := newCountingMetrics()
	c, sim := newSimClient(t, fastConfig(), []SimulatorOption{WithLatency(3 * time.Millisecond)}, WithMetrics(metrics))

	res, err := c.Evaluate(context.Background(), "s1", ascending(15), testParams())
	require.NoError(t, err)
	assert.Equal(t, models.Sell, res.Signal)
	assert.Equal(t, 100, res.Confidence)
	assert.Equal(t, 100.0, res.IndicatorValue)
	assert.Equal(t, 1000.0, res.PositionValue)
	assert.Equal(t, 0, sim.Pending())
	assert.Equal(t, 1, metrics.outcomes["success"])
	assert.Equal(t, 0, metrics.retries)
}

func TestEvaluateRejectsBadInputWithoutSubmitting(t *testing.T) {
	c, sim := newSimClient(t, fastConfig(), nil)

	bad := testParams()
	bad.Oversold = 80
	_, err := c.Evaluate(context.Background(), "s", ascending(15), bad)
	var cfgErr *models.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))

	_, err = c.Evaluate(context.Background(), "s", ascending(10), testParams())
	var dataErr *models.DataError
	assert.True(t, errors.As(err, &dataErr))
	assert.Equal(t, uint64(0), sim.seq.Load())
}

func TestEvaluateRetriesThenSucceeds(t *testing.T) {
	metrics := newCountingMetrics()
	faults := func(n uint64) Fault {
		switch n {
		case 1:
			return FaultTransport
		case 2:
			return FaultFailed
		case 3:
			return FaultCorrupt
		}
		return FaultNone
	}
	c, _ := newSimClient(t, fastConfig(), []SimulatorOption{WithFaults(faults)}, WithMetrics(metrics))

	res, err := c.Evaluate(context.Background(), "s", ascending(15), testParams())
	require.NoError(t, err)
	assert.Equal(t, models.Sell, res.Signal)
	assert.Equal(t, 3, metrics.retries)
	assert.Equal(t, 2, metrics.outcomes["failed"])
	assert.Equal(t, 1, metrics.outcomes["invalid"])
	assert.Equal(t, 1, metrics.outcomes["success"])
}

func TestEvaluateExhaustsRetriesOnInvalidResults(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxRetries = 2
	c, sim := newSimClient(t, cfg, []SimulatorOption{WithFaults(func(uint64) Fault { return FaultInvalid })})

	_, err := c.Evaluate(context.Background(), "s", ascending(15), testParams())
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrComputationUnavailable))
	assert.True(t, errors.Is(err, models.ErrInvalidResult))

	var ue *models.UnavailableError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, 3, ue.Attempts)
	assert.Equal(t, uint64(3), sim.seq.Load())
}

func TestEvaluateTimesOut(t *testing.T) {
	cfg := fastConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxRetries = 1
	c, _ := newSimClient(t, cfg, []SimulatorOption{WithFaults(func(uint64) Fault { return FaultHang })})

	_, err := c.Evaluate(context.Background(), "s", ascending(15), testParams())
	assert.True(t, errors.Is(err, models.ErrComputationUnavailable))
	assert.True(t, errors.Is(err, models.ErrComputationTimeout))
}

func TestEvaluateHonoursCancellation(t *testing.T) {
	cfg := fastConfig()
	cfg.Timeout = time.Minute
	c, _ := newSimClient(t, cfg, []SimulatorOption{WithFaults(func(uint64) Fault { return FaultHang })})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	_, err := c.Evaluate(ctx, "s", ascending(15), testParams())
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, models.ErrComputationUnavailable))
	assert.Less(t, time.Since(start), 5*time.Second)
}

// blockingNetwork holds every poll until release is closed.
type blockingNetwork struct {
	inner   *Simulator
	release chan struct{}
}

func (b *blockingNetwork) Submit(ctx context.Context, p models.EncryptedPayload) (string, error) {
	return b.inner.Submit(ctx, p)
}

func (b *blockingNetwork) Poll(ctx context.Context, id string) (models.PollResult, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return models.PollResult{}, ctx.Err()
	}
	return b.inner.Poll(ctx, id)
}

func TestEvaluateRejectsConcurrentCallsPerSession(t *testing.T) {
	kp, err := GenerateKeyPair(nil)
	require.NoError(t, err)
	net := &blockingNetwork{inner: NewSimulator(kp, logger.Nop()), release: make(chan struct{})}
	guard := NewMemoryGuard()
	c := NewClient(net, kp.Public, fastConfig(), logger.Nop(), WithGuard(guard))

	done := make(chan error, 1)
	go func() {
		_, err := c.Evaluate(context.Background(), "busy", ascending(15), testParams())
		done <- err
	}()
	require.Eventually(t, func() bool { return guard.InFlight() == 1 }, time.Second, time.Millisecond)

	_, err = c.Evaluate(context.Background(), "busy", ascending(15), testParams())
	assert.ErrorIs(t, err, models.ErrBusy)

	close(net.release)
	require.NoError(t, <-done)

	// Other sessions were never blocked, and the slot is free again.
	_, err = c.Evaluate(context.Background(), "other", ascending(15), testParams())
	require.NoError(t, err)
	_, err = c.Evaluate(context.Background(), "busy", ascending(15), testParams())
	require.NoError(t, err)
	assert.Equal(t, 0, guard.InFlight())
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	c := NewClient(nil, nil, ClientConfig{BackoffBase: 100 * time.Millisecond, BackoffCap: time.Second}, logger.Nop())
	want := []time.Duration{100, 200, 400, 800, 1000, 1000}
	for i, w := range want {
		assert.Equal(t, w*time.Millisecond, c.backoff(i+1), "attempt %d", i+1)
	}
}

func TestMemoryGuardReleaseIsIdempotent(t *testing.T) {
	g := NewMemoryGuard()
	release, err := g.Acquire(context.Background(), "s")
	require.NoError(t, err)
	release()
	release()
	again, err := g.Acquire(context.Background(), "s")
	require.NoError(t, err)
	_, err = g.Acquire(context.Background(), "s")
	assert.ErrorIs(t, err, models.ErrBusy)
	again()
}

type failingNetwork struct{ calls int }

func (f *failingNetwork) Submit(context.Context, models.EncryptedPayload) (string, error) {
	f.calls++
	return "", errors.New("connection refused")
}

func (f *failingNetwork) Poll(context.Context, string) (models.PollResult, error) {
	return models.PollResult{}, errors.New("connection refused")
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &failingNetwork{}
	b := NewBreakerNetwork(inner, 2, time.Minute, logger.Nop())

	for i := 0; i < 2; i++ {
		_, err := b.Submit(context.Background(), models.EncryptedPayload{})
		assert.Error(t, err)
	}
	_, err := b.Submit(context.Background(), models.EncryptedPayload{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, "open", b.State())
}

func TestHTTPNetworkAgainstGateway(t *testing.T) {
	kp, err := GenerateKeyPair(nil)
	require.NoError(t, err)
	sim := NewSimulator(kp, logger.Nop())

	mux := http.NewServeMux()
	mux.HandleFunc("/mpc/computations", func(w http.ResponseWriter, r *http.Request) {
		var p models.EncryptedPayload
		if err := decodeJSON(r, &p); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		id, err := sim.Submit(r.Context(), p)
		if err != nil {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		writeJSON(w, SubmitResponse{ID: id})
	})
	mux.HandleFunc("/mpc/computations/", func(w http.ResponseWriter, r *http.Request) {
		pr, err := sim.Poll(r.Context(), r.URL.Path[len("/mpc/computations/"):])
		if err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, pr)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	net := NewHTTPNetwork(srv.URL, time.Second)
	c := NewClient(net, kp.Public, fastConfig(), logger.Nop())
	res, err := c.Evaluate(context.Background(), "http", ascending(15), testParams())
	require.NoError(t, err)
	assert.Equal(t, models.Sell, res.Signal)

	_, err = net.Poll(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
