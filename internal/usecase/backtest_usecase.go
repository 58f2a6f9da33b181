package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/domain/repository"
	"ShadowTrade/pkg/logger"
	"ShadowTrade/pkg/queue"
)

// BacktestUseCase is what the HTTP API talks to. Everything it returns is
// public.
type BacktestUseCase struct {
	svc     *BacktestService
	queue   queue.Queue
	jobs    repository.JobStore
	records repository.RecordStore
	base    models.StrategyParams
	logger  *logger.Logger
}

func NewBacktestUseCase(svc *BacktestService, q queue.Queue, jobs repository.JobStore, records repository.RecordStore, base models.StrategyParams, l *logger.Logger) *BacktestUseCase {
	return &BacktestUseCase{svc: svc, queue: q, jobs: jobs, records: records, base: base, logger: l}
}

// Submit queues a backtest and returns its job status.
func (u *BacktestUseCase) Submit(ctx context.Context, req models.BacktestRequest) (models.JobStatus, error) {
	if err := req.Apply(u.base).Validate(); err != nil {
		return models.JobStatus{}, err
	}
	st := models.JobStatus{ID: uuid.NewString(), Status: models.JobQueued}
	if err := u.jobs.SetJob(ctx, st); err != nil {
		return models.JobStatus{}, fmt.Errorf("store job: %w", err)
	}
	if _, err := u.queue.Enqueue(ctx, BacktestJobType, BacktestJobPayload{JobID: st.ID, Request: req}); err != nil {
		return models.JobStatus{}, fmt.Errorf("enqueue job: %w", err)
	}
	u.logger.Info("backtest queued", logger.String("job_id", st.ID), logger.String("symbol", req.Symbol))
	return st, nil
}

// RunSync runs the backtest on the calling goroutine.
func (u *BacktestUseCase) RunSync(ctx context.Context, req models.BacktestRequest) (models.PublicRecord, error) {
	report, err := u.svc.Run(ctx, RunRequest{
		Symbol:   req.Symbol,
		Interval: req.Interval,
		Count:    req.Count,
		Params:   req.Apply(u.base),
	})
	if err != nil {
		return models.PublicRecord{}, err
	}
	return report.PublicRecord(), nil
}

func (u *BacktestUseCase) Job(ctx context.Context, id string) (models.JobStatus, error) {
	return u.jobs.GetJob(ctx, id)
}

func (u *BacktestUseCase) Record(ctx context.Context, sessionID string) (models.PublicRecord, error) {
	return u.records.Get(ctx, sessionID)
}

func (u *BacktestUseCase) Leaderboard(ctx context.Context, req models.LeaderboardRequest) ([]models.PublicRecord, error) {
	return u.records.Top(ctx, req.Symbol, req.Limit)
}
