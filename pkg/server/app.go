package server

import (
	"context"
	"errors"
	"time"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/domain/repository"
	"ShadowTrade/internal/domain/service"
	"ShadowTrade/internal/middleware"
	"ShadowTrade/internal/services/marketdata"
	"ShadowTrade/internal/usecase"
	"ShadowTrade/pkg/config"
	xhttp "ShadowTrade/pkg/http"
	pkgkafka "ShadowTrade/pkg/kafka"
	applogger "ShadowTrade/pkg/logger"
	"ShadowTrade/pkg/queue"
)

// Deps is everything App runs. Consumer may be nil.
type Deps struct {
	Config    *config.Config
	Logger    *applogger.Logger
	HTTP      *xhttp.Server
	Queue     queue.Queue
	Consumer  *pkgkafka.Consumer
	Backtests *usecase.BacktestService
	Market    repository.MarketData
	Evaluator service.Evaluator
	Publisher repository.RecordPublisher
	Metrics   repository.Metrics
	Strategy  models.StrategyParams
}

// App encapsulates the application lifecycle. Each Run* method blocks until
// ctx is done, then shuts down what it started.
type App struct {
	Deps
	log *applogger.Logger
}

func New(d Deps) *App {
	return &App{Deps: d, log: d.Logger}
}

// Serve runs the HTTP API, the backtest workers and the record sink.
func (a *App) Serve(ctx context.Context) error {
	if err := a.startWorkers(); err != nil {
		return err
	}
	if err := a.HTTP.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		a.stopWorkers()
		return err
	}
	a.log.Info("api started", applogger.Int("port", a.Config.Server.Port))

	<-ctx.Done()
	a.log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := a.HTTP.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	a.stopWorkers()
	a.log.Info("shutdown complete")
	return nil
}

// Worker runs only the backtest workers and the record sink.
func (a *App) Worker(ctx context.Context) error {
	if err := a.startWorkers(); err != nil {
		return err
	}
	<-ctx.Done()
	a.stopWorkers()
	return nil
}

// Backtest runs one backtest in the foreground.
func (a *App) Backtest(ctx context.Context, req usecase.RunRequest) (*models.BacktestReport, error) {
	return a.Backtests.Run(ctx, req)
}

// Sweep ranks threshold pairs over one fetched series.
func (a *App) Sweep(ctx context.Context, req usecase.RunRequest, grid usecase.SweepGrid) ([]usecase.SweepResult, error) {
	return a.Backtests.Sweep(ctx, req, grid)
}

// Live paper-trades symbol on closed klines until ctx is done.
func (a *App) Live(ctx context.Context, symbol, interval string) error {
	m := a.Config.Market
	stream := marketdata.NewStream(m.StreamURL, symbol, interval, m.PingInterval, a.log)
	pipe := middleware.NewSignalPipeline(a.Publisher, a.Metrics)
	pipe.Start(ctx)
	defer pipe.Close()

	session := usecase.NewLiveSession(usecase.LiveConfig{
		Symbol:         symbol,
		Interval:       interval,
		PaperBalance:   a.Config.Backtest.InitialBalance,
		ReconnectDelay: 5 * time.Second,
	}, a.Strategy, stream, a.Market, a.Evaluator, pipe, a.Metrics, a.log)

	a.log.Info("live session started",
		applogger.String("session_id", session.SessionID()),
		applogger.String("symbol", symbol),
		applogger.String("interval", interval),
	)
	if err := session.Warmup(ctx); err != nil {
		a.log.Warn("warmup failed, filling window from the stream", applogger.Error(err))
	}
	return session.Run(ctx)
}

func (a *App) startWorkers() error {
	if err := a.Queue.Start(); err != nil {
		return err
	}
	a.log.Info("backtest workers started", applogger.Int("workers", a.Config.Queue.Workers))

	if a.Consumer != nil {
		if err := a.Consumer.Start(); err != nil {
			a.log.Error("kafka consumer error", applogger.Error(err))
			return err
		}
		a.log.Info("record sink started", applogger.String("topic", a.Config.Kafka.RecordsTopic))
	}
	return nil
}

func (a *App) stopWorkers() {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout)
	defer cancel()

	if err := a.Queue.Stop(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		a.log.Warn("queue stop error", applogger.Error(err))
	}
	if a.Consumer != nil {
		if err := a.Consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
}
