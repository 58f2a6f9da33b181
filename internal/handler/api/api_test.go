package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/internal/service/ratelimit"
	"ShadowTrade/internal/services/mpc"
	xlogger "ShadowTrade/pkg/logger"
)

type stubBacktests struct {
	submitted []models.BacktestRequest
	submitErr error
	records   map[string]models.PublicRecord
}

func (s *stubBacktests) Submit(_ context.Context, req models.BacktestRequest) (models.JobStatus, error) {
	if s.submitErr != nil {
		return models.JobStatus{}, s.submitErr
	}
	s.submitted = append(s.submitted, req)
	return models.JobStatus{ID: "job-1", Status: models.JobQueued}, nil
}

func (s *stubBacktests) RunSync(_ context.Context, req models.BacktestRequest) (models.PublicRecord, error) {
	return models.PublicRecord{SessionID: "s-1", Symbol: req.Symbol, TotalReturn: 4.2, TotalTrades: 3}, nil
}

func (s *stubBacktests) Job(_ context.Context, id string) (models.JobStatus, error) {
	if id != "job-1" {
		return models.JobStatus{}, models.ErrNotFound
	}
	return models.JobStatus{ID: id, Status: models.JobRunning}, nil
}

func (s *stubBacktests) Record(_ context.Context, id string) (models.PublicRecord, error) {
	r, ok := s.records[id]
	if !ok {
		return models.PublicRecord{}, models.ErrNotFound
	}
	return r, nil
}

func (s *stubBacktests) Leaderboard(_ context.Context, req models.LeaderboardRequest) ([]models.PublicRecord, error) {
	out := make([]models.PublicRecord, 0, req.Limit)
	for _, r := range s.records {
		out = append(out, r)
	}
	return out, nil
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestEcho(uc BacktestAPI, limiter *ratelimit.Limiter) *echo.Echo {
	e := echo.New()
	NewBacktestEchoHandler(xlogger.Nop(), uc, limiter).RegisterRoutes(e)
	return e
}

func do(t *testing.T, e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func TestSubmitBacktestQueuesJob(t *testing.T) {
	uc := &stubBacktests{}
	e := newTestEcho(uc, nil)

	rec, env := do(t, e, http.MethodPost, "/api/backtests", `{"symbol":"BTCUSDT","oversold":25,"overbought":75}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Contains(t, string(env.Data), `"job-1"`)
	assert.NotContains(t, rec.Body.String(), "oversold")

	require.Len(t, uc.submitted, 1)
	got := uc.submitted[0]
	assert.Equal(t, "1h", got.Interval)
	assert.Equal(t, 500, got.Count)
	require.NotNil(t, got.Oversold)
	assert.Equal(t, 25.0, *got.Oversold)
}

func TestSubmitBacktestValidation(t *testing.T) {
	e := newTestEcho(&stubBacktests{}, nil)

	rec, _ := do(t, e, http.MethodPost, "/api/backtests", `{"symbol":"btc-usdt"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/api/backtests", `{"symbol":"BTCUSDT","interval":"7m"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, e, http.MethodPost, "/api/backtests", `{"symbol":"BTCUSDT","risk_fraction":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitBacktestConfigurationError(t *testing.T) {
	uc := &stubBacktests{submitErr: &models.ConfigurationError{Field: "thresholds", Reason: "oversold must be < overbought"}}
	e := newTestEcho(uc, nil)

	rec, _ := do(t, e, http.MethodPost, "/api/backtests", `{"symbol":"BTCUSDT","oversold":80}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_CONFIGURATION")
	assert.NotContains(t, rec.Body.String(), "80")
}

func TestSubmitBacktestSync(t *testing.T) {
	e := newTestEcho(&stubBacktests{}, nil)

	rec, env := do(t, e, http.MethodPost, "/api/backtests?sync=true", `{"symbol":"ETHUSDT"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var got models.PublicRecord
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "ETHUSDT", got.Symbol)
	assert.Equal(t, 3, got.TotalTrades)
}

func TestSubmitBacktestRateLimited(t *testing.T) {
	e := newTestEcho(&stubBacktests{}, ratelimit.New(0.001, 1))

	rec, _ := do(t, e, http.MethodPost, "/api/backtests", `{"symbol":"BTCUSDT"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	rec, _ = do(t, e, http.MethodPost, "/api/backtests", `{"symbol":"BTCUSDT"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestJobAndRecordLookups(t *testing.T) {
	uc := &stubBacktests{records: map[string]models.PublicRecord{
		"s-1": {SessionID: "s-1", Symbol: "BTCUSDT", TotalReturn: 12.5},
	}}
	e := newTestEcho(uc, nil)

	rec, _ := do(t, e, http.MethodGet, "/api/jobs/job-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, e, http.MethodGet, "/api/jobs/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, env := do(t, e, http.MethodGet, "/api/records/s-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"total_return":12.5`)
	rec, _ = do(t, e, http.MethodGet, "/api/records/s-2", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLeaderboard(t *testing.T) {
	uc := &stubBacktests{records: map[string]models.PublicRecord{"s-1": {SessionID: "s-1", Symbol: "BTCUSDT"}}}
	e := newTestEcho(uc, nil)

	rec, env := do(t, e, http.MethodGet, "/api/leaderboard?symbol=BTCUSDT&limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(env.Data), `"total":1`)

	rec, _ = do(t, e, http.MethodGet, "/api/leaderboard?limit=500", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToAppError(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, toAppError(&models.UnavailableError{Attempts: 4}).Status)
	assert.Equal(t, http.StatusUnprocessableEntity, toAppError(&models.DataError{Index: 2, Reason: "bad"}).Status)
	assert.Equal(t, http.StatusInternalServerError, toAppError(context.Canceled).Status)
	assert.Equal(t, http.StatusConflict, toAppError(fmt.Errorf("evaluate window: %w", models.ErrBusy)).Status)
}

func TestMPCGatewayServesHTTPNetwork(t *testing.T) {
	kp, err := mpc.GenerateKeyPair(nil)
	require.NoError(t, err)
	sim := mpc.NewSimulator(kp, xlogger.Nop())

	e := echo.New()
	NewMPCGatewayHandler(xlogger.Nop(), sim).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	network := mpc.NewHTTPNetwork(srv.URL, time.Second)
	client := mpc.NewClient(network, kp.Public, mpc.ClientConfig{
		Timeout:      time.Second,
		PollInterval: time.Millisecond,
		MaxRetries:   1,
		BackoffBase:  time.Millisecond,
		BackoffCap:   time.Millisecond,
	}, xlogger.Nop())

	window := make([]float64, 15)
	for i := range window {
		window[i] = 100 + float64(i)
	}
	params := models.StrategyParams{Period: 14, Oversold: 30, Overbought: 70, RiskFraction: 0.1, Balance: 10000}
	res, err := client.Evaluate(context.Background(), "s-1", window, params)
	require.NoError(t, err)
	assert.Equal(t, models.Sell, res.Signal)
	assert.Equal(t, 100, res.Confidence)

	_, err = network.Poll(context.Background(), "unknown")
	assert.ErrorIs(t, err, models.ErrNotFound)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mpc/computations", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
