package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/domain/service"
	"ShadowTrade/internal/services/strategy"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testParams() models.StrategyParams {
	return models.StrategyParams{Period: 14, Oversold: 30, Overbought: 70, RiskFraction: 0.1}
}

func testLedger() LedgerConfig {
	return LedgerConfig{InitialBalance: 10000, Annualization: 1}
}

func seriesOf(closes ...float64) []models.PricePoint {
	out := make([]models.PricePoint, len(closes))
	for i, c := range closes {
		out[i] = models.PricePoint{Timestamp: t0.Add(time.Duration(i) * time.Hour), Open: c, High: c, Low: c, Close: c}
	}
	return out
}

// upThenDown is 100..119 followed by 118..109.
func upThenDown() []models.PricePoint {
	var closes []float64
	for c := 100.0; c <= 119; c++ {
		closes = append(closes, c)
	}
	for c := 118.0; c >= 109; c-- {
		closes = append(closes, c)
	}
	return seriesOf(closes...)
}

// plainEvaluator runs the strategy in the clear.
type plainEvaluator struct{}

func (plainEvaluator) Evaluate(_ context.Context, _ string, window []float64, p models.StrategyParams) (models.ComputationResult, error) {
	return strategy.Evaluate(window, p)
}

type funcEvaluator func(n int) (models.ComputationResult, error)

type scriptedEvaluator struct {
	mu    sync.Mutex
	calls int
	fn    funcEvaluator
}

func (e *scriptedEvaluator) Evaluate(context.Context, string, []float64, models.StrategyParams) (models.ComputationResult, error) {
	e.mu.Lock()
	n := e.calls
	e.calls++
	e.mu.Unlock()
	return e.fn(n)
}

func holdResult() models.ComputationResult {
	return models.ComputationResult{Signal: models.Hold}
}

var errUnavailable = &models.UnavailableError{Attempts: 4, Last: errors.New("network down")}

type stubMarket struct {
	series map[string][]models.PricePoint
}

func (m stubMarket) FetchCandles(_ context.Context, symbol, _ string, _ int) ([]models.PricePoint, error) {
	s, ok := m.series[symbol]
	if !ok {
		return nil, errors.New("unknown symbol")
	}
	return s, nil
}

type capturePublisher struct {
	mu      sync.Mutex
	records []models.PublicRecord
	signals []models.PublicSignal
}

func (p *capturePublisher) PublishRecord(_ context.Context, r models.PublicRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, r)
	return nil
}

func (p *capturePublisher) PublishSignal(_ context.Context, s models.PublicSignal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, s)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

type mapJobStore struct {
	mu   sync.Mutex
	jobs map[string]models.JobStatus
}

func newMapJobStore() *mapJobStore {
	return &mapJobStore{jobs: make(map[string]models.JobStatus)}
}

func (s *mapJobStore) SetJob(_ context.Context, st models.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[st.ID] = st
	return nil
}

func (s *mapJobStore) GetJob(_ context.Context, id string) (models.JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.jobs[id]
	if !ok {
		return models.JobStatus{}, models.ErrNotFound
	}
	return st, nil
}

type mapRecordStore struct {
	mu      sync.Mutex
	records map[string]models.PublicRecord
	err     error
}

func newMapRecordStore() *mapRecordStore {
	return &mapRecordStore{records: make(map[string]models.PublicRecord)}
}

func (s *mapRecordStore) Init(context.Context) error { return nil }

func (s *mapRecordStore) Save(_ context.Context, r models.PublicRecord) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.SessionID] = r
	return nil
}

func (s *mapRecordStore) Get(_ context.Context, id string) (models.PublicRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[id]
	if !ok {
		return models.PublicRecord{}, models.ErrNotFound
	}
	return r, nil
}

func (s *mapRecordStore) Top(context.Context, string, int) ([]models.PublicRecord, error) {
	return nil, nil
}

func (s *mapRecordStore) Close() error { return nil }

// recordingEvaluator keeps every successful decision in call order.
type recordingEvaluator struct {
	next    service.Evaluator
	mu      sync.Mutex
	results []models.ComputationResult
}

func (e *recordingEvaluator) Evaluate(ctx context.Context, sessionID string, window []float64, p models.StrategyParams) (models.ComputationResult, error) {
	res, err := e.next.Evaluate(ctx, sessionID, window, p)
	if err == nil {
		e.mu.Lock()
		e.results = append(e.results, res)
		e.mu.Unlock()
	}
	return res, err
}

// blockingEvaluator buys on the first window and blocks on call blockAt
// until ctx is done.
type blockingEvaluator struct {
	calls   int
	blockAt int
	started chan struct{}
}

func (e *blockingEvaluator) Evaluate(ctx context.Context, _ string, _ []float64, _ models.StrategyParams) (models.ComputationResult, error) {
	n := e.calls
	e.calls++
	switch n {
	case 0:
		return models.ComputationResult{Signal: models.Buy, Confidence: 90, PositionValue: 1000, PositionSize: 10}, nil
	case e.blockAt:
		close(e.started)
		<-ctx.Done()
		return models.ComputationResult{}, ctx.Err()
	}
	return holdResult(), nil
}
