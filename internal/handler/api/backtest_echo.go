package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/service/ratelimit"
	xhttp "ShadowTrade/pkg/http"
	xlogger "ShadowTrade/pkg/logger"
)

// BacktestAPI is the use case behind the backtest routes.
type BacktestAPI interface {
	Submit(ctx context.Context, req models.BacktestRequest) (models.JobStatus, error)
	RunSync(ctx context.Context, req models.BacktestRequest) (models.PublicRecord, error)
	Job(ctx context.Context, id string) (models.JobStatus, error)
	Record(ctx context.Context, sessionID string) (models.PublicRecord, error)
	Leaderboard(ctx context.Context, req models.LeaderboardRequest) ([]models.PublicRecord, error)
}

// BacktestEchoHandler serves public backtest results. Nothing it writes
// carries strategy parameters, balances or sizes.
type BacktestEchoHandler struct {
	logger  *xlogger.Logger
	uc      BacktestAPI
	limiter *ratelimit.Limiter
}

func NewBacktestEchoHandler(logger *xlogger.Logger, uc BacktestAPI, limiter *ratelimit.Limiter) *BacktestEchoHandler {
	return &BacktestEchoHandler{logger: logger, uc: uc, limiter: limiter}
}

func (h *BacktestEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.POST("/backtests", h.Submit)
	g.GET("/jobs/:id", h.Job)
	g.GET("/records/:session", h.Record)
	g.GET("/leaderboard", h.Leaderboard)
}

// Submit queues a backtest, or runs it inline with ?sync=true.
func (h *BacktestEchoHandler) Submit(c echo.Context) error {
	if h.limiter != nil && !h.limiter.Allow(c.RealIP()) {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_RATE_LIMITED", "", "too many backtests", http.StatusTooManyRequests))
	}
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	ctx := c.Request().Context()

	if xhttp.ParseBoolDefault(c.QueryParam("sync"), false) {
		rec, err := h.uc.RunSync(ctx, *req)
		if err != nil {
			return h.fail(c, "backtest run error", err)
		}
		return xhttp.SuccessResponse(c, rec)
	}

	st, err := h.uc.Submit(ctx, *req)
	if err != nil {
		return h.fail(c, "backtest submit error", err)
	}
	return xhttp.AcceptedResponse(c, st)
}

func (h *BacktestEchoHandler) Job(c echo.Context) error {
	st, err := h.uc.Job(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "job lookup error", err)
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *BacktestEchoHandler) Record(c echo.Context) error {
	rec, err := h.uc.Record(c.Request().Context(), c.Param("session"))
	if err != nil {
		return h.fail(c, "record lookup error", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "public, max-age=60")
	return xhttp.SuccessResponse(c, rec)
}

func (h *BacktestEchoHandler) Leaderboard(c echo.Context) error {
	req := &models.LeaderboardRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.uc.Leaderboard(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "leaderboard error", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *BacktestEchoHandler) fail(c echo.Context, msg string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(msg, xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// toAppError maps domain errors to HTTP. Configuration and data errors carry
// no parameter values, so their messages are safe to render.
func toAppError(err error) *xhttp.AppError {
	var cfgErr *models.ConfigurationError
	var dataErr *models.DataError
	switch {
	case errors.As(err, &cfgErr):
		return xhttp.NewAppError("ERR_CONFIGURATION", cfgErr.Field, cfgErr.Error(), http.StatusUnprocessableEntity).WithError(err)
	case errors.As(err, &dataErr):
		return xhttp.UnprocessableError(dataErr.Error()).WithError(err)
	case errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundError("not found").WithError(err)
	case errors.Is(err, models.ErrBusy):
		return xhttp.ConflictError("session has a computation in flight").WithError(err)
	case errors.Is(err, models.ErrComputationUnavailable), errors.Is(err, context.DeadlineExceeded):
		return xhttp.ServiceUnavailableError("computation network unavailable").WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
