package usecase

import (
	"context"
	"errors"
	"fmt"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/domain/repository"
	xhttp "ShadowTrade/pkg/http"
	"ShadowTrade/pkg/logger"
	"ShadowTrade/pkg/queue"
)

const BacktestJobType = "backtest.run"

// BacktestJobPayload is what travels through the queue.
type BacktestJobPayload struct {
	JobID   string                 `json:"job_id"`
	Request models.BacktestRequest `json:"request"`
}

// BacktestJob executes queued backtests and tracks their status.
type BacktestJob struct {
	svc        *BacktestService
	jobs       repository.JobStore
	base       models.StrategyParams
	retryLimit int
	logger     *logger.Logger
}

// NewBacktestJob builds the job. retryLimit must match the queue's, so the
// last failed attempt can be reported as aborted.
func NewBacktestJob(svc *BacktestService, jobs repository.JobStore, base models.StrategyParams, retryLimit int, l *logger.Logger) *BacktestJob {
	return &BacktestJob{svc: svc, jobs: jobs, base: base, retryLimit: retryLimit, logger: l}
}

var _ queue.Job = (*BacktestJob)(nil)

func (j *BacktestJob) Name() string { return "backtest-runner" }
func (j *BacktestJob) Type() string { return BacktestJobType }

func (j *BacktestJob) Handle(ctx context.Context, msg queue.Message) error {
	p, err := queue.Decode[BacktestJobPayload](msg)
	if err != nil {
		return err
	}
	status := models.JobStatus{ID: p.JobID, Status: models.JobRunning}
	if verrs := xhttp.ValidateRequest(ctx, &p.Request); verrs != nil {
		status.Status = models.JobAborted
		status.Error = "invalid request: " + verrs[0].Message
		j.setJob(ctx, status)
		return queue.Permanent(fmt.Errorf("job %s: %s", p.JobID, status.Error))
	}
	j.setJob(ctx, status)

	req := RunRequest{
		Symbol:   p.Request.Symbol,
		Interval: p.Request.Interval,
		Count:    p.Request.Count,
		Params:   p.Request.Apply(j.base),
	}
	report, err := j.svc.Run(ctx, req)
	if err != nil {
		status.Error = err.Error()
		var cfgErr *models.ConfigurationError
		var dataErr *models.DataError
		switch {
		case errors.As(err, &cfgErr) || errors.As(err, &dataErr):
			status.Status = models.JobAborted
			j.setJob(ctx, status)
			return queue.Permanent(err)
		case ctx.Err() != nil:
			// the queue is shutting down and will hand the message back
			status.Status = models.JobQueued
		case msg.Attempts >= j.retryLimit:
			status.Status = models.JobAborted
		default:
			status.Status = models.JobQueued
		}
		j.setJob(context.WithoutCancel(ctx), status)
		return err
	}

	rec := report.PublicRecord()
	status.Status = models.JobCompleted
	status.SessionID = rec.SessionID
	status.Record = &rec
	j.setJob(ctx, status)
	return nil
}

func (j *BacktestJob) setJob(ctx context.Context, st models.JobStatus) {
	if err := j.jobs.SetJob(ctx, st); err != nil {
		j.logger.Warn("job status update failed", logger.String("job_id", st.ID), logger.Error(err))
	}
}
