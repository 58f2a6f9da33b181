package mpc

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/domain/service"
	"ShadowTrade/internal/services/strategy"
	"ShadowTrade/pkg/logger"
)

// Fault is an injected misbehaviour of the simulated network.
type Fault int

const (
	FaultNone      Fault = iota
	FaultTransport       // Submit returns an error
	FaultFailed          // computation finalizes as Failed
	FaultCorrupt         // output fails authentication
	FaultInvalid         // output decrypts to an out-of-range result
	FaultHang            // computation never finalizes
)

// FaultFunc decides the fault for the n-th submission, starting at 1.
type FaultFunc func(n uint64) Fault

type simJob struct {
	readyAt time.Time
	result  models.PollResult
	hang    bool
}

// Simulator is an in-process stand-in for the computation network. It holds
// the cluster key, so ciphertexts are opened only here, exactly as the real
// network would.
type Simulator struct {
	cluster KeyPair
	latency time.Duration
	faults  FaultFunc
	rand    io.Reader
	logger  *logger.Logger

	mu   sync.Mutex
	jobs map[string]*simJob
	seq  atomic.Uint64
}

type SimulatorOption func(*Simulator)

func WithLatency(d time.Duration) SimulatorOption {
	return func(s *Simulator) { s.latency = d }
}

func WithFaults(f FaultFunc) SimulatorOption {
	return func(s *Simulator) { s.faults = f }
}

// WithFailureRate injects transport faults with probability p.
func WithFailureRate(p float64, seed int64) SimulatorOption {
	return func(s *Simulator) {
		if p <= 0 {
			return
		}
		var mu sync.Mutex
		rng := rand.New(rand.NewSource(seed))
		s.faults = func(uint64) Fault {
			mu.Lock()
			defer mu.Unlock()
			if rng.Float64() < p {
				return FaultTransport
			}
			return FaultNone
		}
	}
}

// WithSimulatorRand replaces crypto/rand for output nonces.
func WithSimulatorRand(r io.Reader) SimulatorOption {
	return func(s *Simulator) { s.rand = r }
}

func NewSimulator(cluster KeyPair, l *logger.Logger, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		cluster: cluster,
		faults:  func(uint64) Fault { return FaultNone },
		logger:  l,
		jobs:    make(map[string]*simJob),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ service.ComputationNetwork = (*Simulator)(nil)

// PublicKey is the cluster key clients encrypt to.
func (s *Simulator) PublicKey() []byte { return s.cluster.Public }

func (s *Simulator) Submit(ctx context.Context, payload models.EncryptedPayload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	n := s.seq.Add(1)
	fault := s.faults(n)
	if fault == FaultTransport {
		return "", fmt.Errorf("simulated transport failure on submission %d", n)
	}
	if payload.Schema != SchemaInput {
		return "", fmt.Errorf("unsupported schema %q", payload.Schema)
	}

	job := &simJob{readyAt: time.Now().Add(s.latency), hang: fault == FaultHang}
	job.result = s.compute(payload, fault)

	id := uuid.NewString()
	s.mu.Lock()
	s.jobs[id] = job
	s.mu.Unlock()

	s.logger.Debug("computation submitted",
		logger.String("id", id),
		logger.Int("fault", int(fault)),
		logger.Int("ciphertext_bytes", len(payload.Ciphertext)),
	)
	return id, nil
}

func (s *Simulator) Poll(ctx context.Context, id string) (models.PollResult, error) {
	if err := ctx.Err(); err != nil {
		return models.PollResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return models.PollResult{}, fmt.Errorf("computation %s: %w", id, models.ErrNotFound)
	}
	if job.hang || time.Now().Before(job.readyAt) {
		return models.PollResult{Status: models.StatusPending}, nil
	}
	delete(s.jobs, id)
	return job.result, nil
}

// Pending returns the number of computations not yet collected.
func (s *Simulator) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *Simulator) compute(payload models.EncryptedPayload, fault Fault) models.PollResult {
	failed := func(reason string) models.PollResult {
		return models.PollResult{Status: models.StatusFailed, Reason: reason}
	}
	if fault == FaultFailed {
		return failed("simulated node failure")
	}

	ex, err := NewClusterExchange(s.cluster, payload.ClientPublicKey, s.rand)
	if err != nil {
		return failed("key agreement")
	}
	plaintext, err := ex.OpenInput(payload)
	if err != nil {
		return failed("input authentication")
	}
	window, params, err := decodeInput(plaintext)
	if err != nil {
		return failed("input layout")
	}
	if err := params.Validate(); err != nil {
		return failed(err.Error())
	}
	res, err := strategy.Evaluate(window, params)
	if err != nil {
		return failed(err.Error())
	}
	if fault == FaultInvalid {
		res.Confidence = 250
	}

	out, err := encodeOutput(res)
	if err != nil {
		return failed("output layout")
	}
	sealed, err := ex.SealOutput(SchemaOutput, out)
	if err != nil {
		return failed("output encryption")
	}
	if fault == FaultCorrupt {
		sealed.Ciphertext[0] ^= 0xff
	}
	return models.PollResult{Status: models.StatusFinalized, Output: &sealed}
}
