package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/domain/repository"
	"ShadowTrade/internal/domain/service"
	"ShadowTrade/pkg/logger"
	"ShadowTrade/pkg/util"
)

// BacktestConfig configures BacktestService.
type BacktestConfig struct {
	Ledger           LedgerConfig
	AnnualizationFor string // fallback interval when the run's cannot be parsed
	RunTimeout       time.Duration
	Parallelism      int
}

// RunRequest describes one backtest. Params are private.
type RunRequest struct {
	SessionID string // generated when empty
	Symbol    string
	Interval  string
	Count     int
	Params    models.StrategyParams
}

// RunResult pairs a request with its outcome in RunMany.
type RunResult struct {
	Request RunRequest
	Report  *models.BacktestReport
	Err     error
}

// BacktestService fetches history, drives a BacktestRun and publishes the
// public record of every completed run.
type BacktestService struct {
	market    repository.MarketData
	evaluator service.Evaluator
	records   repository.RecordPublisher
	metrics   repository.Metrics
	logger    *logger.Logger
	cfg       BacktestConfig
}

func NewBacktestService(market repository.MarketData, ev service.Evaluator, records repository.RecordPublisher, m repository.Metrics, l *logger.Logger, cfg BacktestConfig) *BacktestService {
	if m == nil {
		m = repository.NopMetrics{}
	}
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	return &BacktestService{market: market, evaluator: ev, records: records, metrics: m, logger: l, cfg: cfg}
}

// Run fetches the series and backtests it.
func (s *BacktestService) Run(ctx context.Context, req RunRequest) (*models.BacktestReport, error) {
	if err := req.Params.Validate(); err != nil {
		return nil, err
	}
	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}
	series, err := s.market.FetchCandles(ctx, req.Symbol, req.Interval, req.Count)
	if err != nil {
		s.metrics.RecordError("market_data")
		return nil, fmt.Errorf("fetch %s %s: %w", req.Symbol, req.Interval, err)
	}
	return s.RunSeries(ctx, req, series)
}

// RunSeries backtests an already fetched series.
func (s *BacktestService) RunSeries(ctx context.Context, req RunRequest, series []models.PricePoint) (*models.BacktestReport, error) {
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}
	report, err := s.execute(ctx, req, series)
	if err != nil {
		return nil, err
	}

	if s.records != nil {
		if err := s.records.PublishRecord(ctx, report.PublicRecord()); err != nil {
			s.metrics.RecordError("publish_record")
			s.logger.Error("publish public record failed",
				logger.String("session_id", req.SessionID),
				logger.Error(err),
			)
		}
	}
	return report, nil
}

// RunMany runs independent backtests concurrently, each with its own session
// and ledger. Results keep the order of reqs.
func (s *BacktestService) RunMany(ctx context.Context, reqs []RunRequest) []RunResult {
	results := make([]RunResult, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i := range reqs {
		i := i
		results[i].Request = reqs[i]
		g.Go(func() error {
			results[i].Report, results[i].Err = s.Run(gctx, reqs[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// SweepGrid lists the thresholds tried by Sweep.
type SweepGrid struct {
	Oversold   []float64
	Overbought []float64
}

// SweepResult is one grid point. It carries private thresholds and stays
// with the strategy owner.
type SweepResult struct {
	Oversold   float64
	Overbought float64
	Report     *models.BacktestReport
	Err        error
}

// Sweep fetches the series once and backtests every oversold/overbought pair
// of grid concurrently, each in its own session. Pairs with
// oversold >= overbought are skipped. Results are ranked by total return,
// best first, with failed runs last. Sweep runs publish nothing.
func (s *BacktestService) Sweep(ctx context.Context, req RunRequest, grid SweepGrid) ([]SweepResult, error) {
	var results []SweepResult
	for _, lo := range grid.Oversold {
		for _, hi := range grid.Overbought {
			if lo < hi {
				results = append(results, SweepResult{Oversold: lo, Overbought: hi})
			}
		}
	}
	if len(results) == 0 {
		return nil, &models.ConfigurationError{Field: "grid", Reason: "no oversold/overbought pair with oversold < overbought"}
	}

	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}
	series, err := s.market.FetchCandles(ctx, req.Symbol, req.Interval, req.Count)
	if err != nil {
		s.metrics.RecordError("market_data")
		return nil, fmt.Errorf("fetch %s %s: %w", req.Symbol, req.Interval, err)
	}
	return s.SweepSeries(ctx, req, series, results), nil
}

// SweepSeries runs the given grid points over an already fetched series.
func (s *BacktestService) SweepSeries(ctx context.Context, req RunRequest, series []models.PricePoint, points []SweepResult) []SweepResult {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Parallelism)
	for i := range points {
		i := i
		g.Go(func() error {
			r := req
			r.SessionID = uuid.NewString()
			r.Params.Oversold = points[i].Oversold
			r.Params.Overbought = points[i].Overbought
			points[i].Report, points[i].Err = s.execute(gctx, r, series)
			return nil
		})
	}
	_ = g.Wait()

	sort.SliceStable(points, func(a, b int) bool {
		pa, pb := points[a], points[b]
		if (pa.Err == nil) != (pb.Err == nil) {
			return pa.Err == nil
		}
		if pa.Err != nil {
			return false
		}
		return pa.Report.TotalReturn > pb.Report.TotalReturn
	})
	return points
}

func (s *BacktestService) execute(ctx context.Context, req RunRequest, series []models.PricePoint) (*models.BacktestReport, error) {
	cfg := s.cfg.Ledger
	cfg.Annualization = s.annualization(req.Interval)
	run := NewBacktestRun(req.SessionID, req.Symbol, req.Interval, s.evaluator, s.metrics, s.logger, cfg)
	return run.Execute(ctx, series, req.Params)
}

func (s *BacktestService) annualization(interval string) float64 {
	if f, err := util.AnnualizationFactor(interval); err == nil {
		return f
	}
	if f, err := util.AnnualizationFactor(s.cfg.AnnualizationFor); err == nil {
		return f
	}
	return 1
}
