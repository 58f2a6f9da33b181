package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/domain/repository"
	"ShadowTrade/internal/domain/service"
	"ShadowTrade/internal/services/features"
	"ShadowTrade/pkg/logger"
)

// ErrRunStarted is returned when Execute is called on a run that has left Idle.
var ErrRunStarted = errors.New("backtest run already started")

// LedgerConfig holds the simulated account settings of a run.
type LedgerConfig struct {
	InitialBalance float64
	CommissionPct  float64
	SlippagePct    float64
	StopLossPct    float64 // 0 disables
	TakeProfitPct  float64 // 0 disables
	RiskFreeRate   float64
	Annualization  float64
}

// BacktestRun replays one series through the evaluator. It owns its ledger
// exclusively and is single use: Idle -> Running -> Completed | Aborted.
type BacktestRun struct {
	sessionID string
	symbol    string
	interval  string
	evaluator service.Evaluator
	metrics   repository.Metrics
	logger    *logger.Logger
	cfg       LedgerConfig

	mu     sync.Mutex
	status models.RunStatus

	ledger   models.Ledger
	outcomes []ComputationOutcome
}

func NewBacktestRun(sessionID, symbol, interval string, ev service.Evaluator, m repository.Metrics, l *logger.Logger, cfg LedgerConfig) *BacktestRun {
	if m == nil {
		m = repository.NopMetrics{}
	}
	return &BacktestRun{
		sessionID: sessionID,
		symbol:    symbol,
		interval:  interval,
		evaluator: ev,
		metrics:   m,
		logger:    l.With(logger.String("session_id", sessionID), logger.String("symbol", symbol)),
		cfg:       cfg,
		status:    models.RunIdle,
	}
}

// Status is safe to call from any goroutine.
func (r *BacktestRun) Status() models.RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *BacktestRun) setStatus(s models.RunStatus) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// Execute runs the whole series. On any error the run is Aborted and no
// report is returned; computation failures on single windows are not errors.
func (r *BacktestRun) Execute(ctx context.Context, series []models.PricePoint, params models.StrategyParams) (*models.BacktestReport, error) {
	r.mu.Lock()
	if r.status != models.RunIdle {
		r.mu.Unlock()
		return nil, ErrRunStarted
	}
	r.status = models.RunRunning
	r.mu.Unlock()

	report, err := r.execute(ctx, series, params)
	if err != nil {
		r.setStatus(models.RunAborted)
		r.metrics.RecordBacktest(string(models.RunAborted))
		r.logger.Warn("backtest aborted", logger.Error(err))
		return nil, err
	}
	r.setStatus(models.RunCompleted)
	r.metrics.RecordBacktest(string(models.RunCompleted))
	return report, nil
}

func (r *BacktestRun) execute(ctx context.Context, series []models.PricePoint, params models.StrategyParams) (*models.BacktestReport, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if !(r.cfg.InitialBalance > 0) {
		return nil, &models.ConfigurationError{Field: "initial_balance", Reason: "must be > 0"}
	}
	if r.cfg.StopLossPct < 0 || r.cfg.StopLossPct >= 100 {
		return nil, &models.ConfigurationError{Field: "stop_loss_pct", Reason: "must be in [0,100)"}
	}
	if r.cfg.TakeProfitPct < 0 {
		return nil, &models.ConfigurationError{Field: "take_profit_pct", Reason: "must be >= 0"}
	}
	if err := models.ValidateSeries(series, params.WindowLen()); err != nil {
		return nil, err
	}

	started := time.Now().UTC()
	r.ledger = models.Ledger{Cash: r.cfg.InitialBalance}
	r.outcomes = make([]ComputationOutcome, 0, len(series)-params.Period)
	window := features.NewWindow(params.WindowLen())

	for _, p := range series {
		if err := window.Push(p.Close); err != nil {
			return nil, &models.DataError{Index: -1, Reason: err.Error()}
		}
		if !window.Full() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		exited := r.checkExits(p)

		start := time.Now()
		res, err := r.evaluator.Evaluate(ctx, r.sessionID, window.Snapshot(), params.WithBalance(r.ledger.Cash))
		latency := time.Since(start)
		switch {
		case err == nil:
			r.outcomes = append(r.outcomes, ComputationOutcome{OK: true, Latency: latency, Signal: res.Signal, Confidence: res.Confidence})
			r.metrics.RecordSignal(r.symbol, res.Signal.String(), res.Confidence)
			if !exited {
				r.apply(p, res, params)
			}
		case ctx.Err() != nil:
			return nil, ctx.Err()
		case errors.Is(err, models.ErrBusy):
			return nil, fmt.Errorf("session %s shared by another run: %w", r.sessionID, err)
		case models.IsComputationError(err):
			r.outcomes = append(r.outcomes, ComputationOutcome{Latency: latency})
			r.logger.Warn("window skipped after computation failure",
				logger.Any("at", p.Timestamp),
				logger.Error(err),
			)
		default:
			return nil, fmt.Errorf("evaluate window at %s: %w", p.Timestamp.Format(time.RFC3339), err)
		}

		r.ledger.Equity = append(r.ledger.Equity, models.EquityPoint{
			Timestamp: p.Timestamp,
			Balance:   r.ledger.MarkToMarket(p.Close),
		})
	}

	if r.ledger.Position != nil {
		last := series[len(series)-1]
		r.closePosition(last, models.ExitEndOfSeries)
	}

	report := BuildReport(ReportInput{
		InitialBalance: r.cfg.InitialBalance,
		Ledger:         &r.ledger,
		Outcomes:       r.outcomes,
		RiskFreeRate:   r.cfg.RiskFreeRate,
		Annualization:  r.cfg.Annualization,
	})
	report.SessionID = r.sessionID
	report.Symbol = r.symbol
	report.Interval = r.interval
	report.StartedAt = started
	report.FinishedAt = time.Now().UTC()

	r.logger.Info("backtest completed",
		logger.Int("windows", report.Computation.Total),
		logger.Int("failed_windows", report.Computation.Failed),
		logger.Int("trades", report.TotalTrades),
		logger.Float64("total_return_pct", report.TotalReturn),
	)
	return &report, nil
}

// apply mutates the ledger for one successful decision.
func (r *BacktestRun) apply(p models.PricePoint, res models.ComputationResult, params models.StrategyParams) {
	switch res.Signal {
	case models.Buy:
		if r.ledger.Position != nil || res.Confidence < params.MinConfidence {
			return
		}
		if res.PositionValue <= 0 || res.PositionSize <= 0 || res.PositionValue > r.ledger.Cash {
			return
		}
		fill := p.Close * (1 + r.cfg.SlippagePct/100)
		fee := res.PositionValue * r.cfg.CommissionPct / 100
		size := res.PositionSize * (p.Close / fill) * (1 - r.cfg.CommissionPct/100)
		r.ledger.Cash -= res.PositionValue
		r.ledger.Position = &models.Position{
			EntryTime:  p.Timestamp,
			EntryPrice: fill,
			Size:       size,
			Cost:       res.PositionValue,
			EntryFee:   fee,
		}
	case models.Sell:
		if r.ledger.Position != nil {
			r.closePosition(p, models.ExitSignal)
		}
	}
}

// checkExits closes the open position once the close crosses the stop-loss
// or take-profit level. An exit consumes the bar: its decision is not applied.
func (r *BacktestRun) checkExits(p models.PricePoint) bool {
	pos := r.ledger.Position
	if pos == nil {
		return false
	}
	move := pos.MovePct(p.Close)
	switch {
	case r.cfg.StopLossPct > 0 && move <= -r.cfg.StopLossPct:
		r.closePosition(p, models.ExitStopLoss)
	case r.cfg.TakeProfitPct > 0 && move >= r.cfg.TakeProfitPct:
		r.closePosition(p, models.ExitTakeProfit)
	default:
		return false
	}
	return true
}

func (r *BacktestRun) closePosition(p models.PricePoint, reason models.ExitReason) {
	pos := r.ledger.Position
	fill := p.Close * (1 - r.cfg.SlippagePct/100)
	gross := pos.Size * fill
	exitFee := gross * r.cfg.CommissionPct / 100
	proceeds := gross - exitFee
	pnl := proceeds - pos.Cost

	r.ledger.Cash += proceeds
	r.ledger.Position = nil
	r.ledger.Trades = append(r.ledger.Trades, models.Trade{
		EntryTime:  pos.EntryTime,
		ExitTime:   p.Timestamp,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  fill,
		Size:       pos.Size,
		Side:       models.SideLong,
		Fees:       pos.EntryFee + exitFee,
		PnL:        pnl,
		Exit:       reason,
	})
	r.metrics.RecordTrade(pnl)
}
