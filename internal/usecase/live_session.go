package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ShadowTrade/internal/domain/models"
	domrepo "ShadowTrade/internal/domain/repository"
	"ShadowTrade/internal/domain/service"
	"ShadowTrade/internal/services/features"
	"ShadowTrade/pkg/logger"
	"ShadowTrade/pkg/util"
)

// LiveConfig configures a paper-trading session.
type LiveConfig struct {
	Symbol         string
	Interval       string
	PaperBalance   float64
	ReconnectDelay time.Duration
}

// LiveSession evaluates every closed kline of a stream and emits public
// signals only. It never places orders.
type LiveSession struct {
	sessionID string
	cfg       LiveConfig
	params    models.StrategyParams
	stream    domrepo.KlineStream
	market    domrepo.MarketData
	evaluator service.Evaluator
	publisher domrepo.RecordPublisher
	metrics   domrepo.Metrics
	logger    *logger.Logger

	window *features.Window
	step   time.Duration // kline spacing, 0 when the interval is unknown
	last   time.Time     // open time of the newest close in window
}

func NewLiveSession(cfg LiveConfig, params models.StrategyParams, stream domrepo.KlineStream, market domrepo.MarketData, ev service.Evaluator, pub domrepo.RecordPublisher, m domrepo.Metrics, l *logger.Logger) *LiveSession {
	if m == nil {
		m = domrepo.NopMetrics{}
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	step, _ := util.IntervalDuration(cfg.Interval)
	id := uuid.NewString()
	return &LiveSession{
		sessionID: id,
		cfg:       cfg,
		params:    params,
		stream:    stream,
		market:    market,
		evaluator: ev,
		publisher: pub,
		metrics:   m,
		logger:    l.With(logger.String("session_id", id), logger.String("symbol", cfg.Symbol)),
		window:    features.NewWindow(params.WindowLen()),
		step:      step,
	}
}

func (s *LiveSession) SessionID() string { return s.sessionID }

// Warmup fills the window from history so the first live kline can be
// evaluated. The newest historical candle is usually still open and is
// dropped.
func (s *LiveSession) Warmup(ctx context.Context) error {
	if s.market == nil {
		return nil
	}
	series, err := s.market.FetchCandles(ctx, s.cfg.Symbol, s.cfg.Interval, s.params.WindowLen()+1)
	if err != nil {
		return fmt.Errorf("warmup: %w", err)
	}
	if len(series) > 0 {
		series = series[:len(series)-1]
	}
	for i, p := range series {
		if !s.last.IsZero() && !p.Timestamp.After(s.last) {
			return &models.DataError{Index: i, Reason: "warmup: timestamps must be strictly increasing"}
		}
		if err := s.window.Push(p.Close); err != nil {
			return &models.DataError{Index: i, Reason: "warmup: " + err.Error()}
		}
		s.last = p.Timestamp
	}
	s.logger.Info("live window warmed up", logger.Int("closes", s.window.Len()))
	return nil
}

// resync drops the window and refills it from history.
func (s *LiveSession) resync(ctx context.Context) error {
	s.window = features.NewWindow(s.params.WindowLen())
	s.last = time.Time{}
	return s.Warmup(ctx)
}

// Run consumes the stream until ctx is done, reconnecting on stream errors.
func (s *LiveSession) Run(ctx context.Context) error {
	if err := s.params.Validate(); err != nil {
		return err
	}
	for {
		if err := s.stream.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("stream connect failed", logger.Error(err))
		} else {
			err = s.consume(ctx)
			_ = s.stream.Close()
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Warn("stream dropped", logger.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.cfg.ReconnectDelay):
		}
	}
}

func (s *LiveSession) consume(ctx context.Context) error {
	points, errs := s.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if ok && err != nil {
				return err
			}
			errs = nil
		case p, ok := <-points:
			if !ok {
				return errors.New("stream closed")
			}
			if _, err := s.OnKline(ctx, p); err != nil && ctx.Err() == nil {
				s.logger.Warn("kline skipped", logger.Error(err))
			}
		}
	}
}

// OnKline advances the window by one closed kline and, once the window is
// full, evaluates it. It returns the published signal, if any. Klines at or
// before the newest one seen are ignored; a gap rebuilds the window from
// history first.
func (s *LiveSession) OnKline(ctx context.Context, p models.PricePoint) (*models.PublicSignal, error) {
	if !s.last.IsZero() {
		if !p.Timestamp.After(s.last) {
			s.logger.Debug("stale kline ignored", logger.Any("at", p.Timestamp), logger.Any("last", s.last))
			return nil, nil
		}
		if s.step > 0 && p.Timestamp.Sub(s.last) > s.step {
			s.logger.Warn("kline gap, rebuilding window",
				logger.Any("last", s.last),
				logger.Any("at", p.Timestamp),
			)
			if err := s.resync(ctx); err != nil {
				return nil, err
			}
		}
	}
	if s.last.IsZero() || p.Timestamp.After(s.last) {
		if err := s.window.Push(p.Close); err != nil {
			return nil, err
		}
		s.last = p.Timestamp
	}
	if !s.window.Full() {
		return nil, nil
	}

	res, err := s.evaluator.Evaluate(ctx, s.sessionID, s.window.Snapshot(), s.params.WithBalance(s.cfg.PaperBalance))
	if err != nil {
		if errors.Is(err, models.ErrBusy) {
			s.metrics.RecordError("session_busy")
			return nil, fmt.Errorf("kline at %s: %w", p.Timestamp.Format(time.RFC3339), err)
		}
		if models.IsComputationError(err) {
			s.logger.Warn("live computation failed, holding", logger.Error(err))
			return nil, nil
		}
		return nil, err
	}

	sig := res.Public(s.sessionID, s.cfg.Symbol, p.Timestamp)
	s.metrics.RecordSignal(sig.Symbol, sig.Signal.String(), sig.Confidence)
	s.logger.Info("live signal",
		logger.String("signal", sig.Signal.String()),
		logger.Int("confidence", sig.Confidence),
		logger.Bool("actionable", sig.Signal != models.Hold && sig.Confidence > highConfidence),
	)
	if s.publisher != nil {
		if err := s.publisher.PublishSignal(ctx, sig); err != nil {
			s.metrics.RecordError("publish_signal")
			s.logger.Warn("publish signal failed", logger.Error(err))
		}
	}
	return &sig, nil
}
