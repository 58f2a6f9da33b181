package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShadowTrade/internal/domain/models"
	"ShadowTrade/pkg/logger"
)

func TestLiveSessionEmitsPublicSignals(t *testing.T) {
	pub := &capturePublisher{}
	cfg := LiveConfig{Symbol: "BTCUSDT", Interval: "1h", PaperBalance: 10000}
	s := NewLiveSession(cfg, testParams(), nil, nil, plainEvaluator{}, pub, nil, logger.Nop())

	series := upThenDown()
	for i, p := range series[:14] {
		sig, err := s.OnKline(context.Background(), p)
		require.NoError(t, err, "kline %d", i)
		assert.Nil(t, sig)
	}

	sig, err := s.OnKline(context.Background(), series[14])
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, models.Sell, sig.Signal)
	assert.Equal(t, 100, sig.Confidence)
	assert.Equal(t, s.SessionID(), sig.SessionID)
	assert.Equal(t, series[14].Timestamp, sig.Timestamp)
	require.Len(t, pub.signals, 1)
}

func TestLiveSessionHoldsOnComputationFailure(t *testing.T) {
	pub := &capturePublisher{}
	ev := &scriptedEvaluator{fn: func(int) (models.ComputationResult, error) { return models.ComputationResult{}, errUnavailable }}
	params := testParams()
	params.Period = 2
	s := NewLiveSession(LiveConfig{Symbol: "BTCUSDT", PaperBalance: 10000}, params, nil, nil, ev, pub, nil, logger.Nop())

	for _, p := range seriesOf(100, 101, 102, 103) {
		sig, err := s.OnKline(context.Background(), p)
		require.NoError(t, err)
		assert.Nil(t, sig)
	}
	assert.Empty(t, pub.signals)
	assert.Equal(t, 2, ev.calls)
}

func TestLiveSessionRejectsBadPrice(t *testing.T) {
	s := NewLiveSession(LiveConfig{Symbol: "BTCUSDT", PaperBalance: 10000}, testParams(), nil, nil, plainEvaluator{}, nil, nil, logger.Nop())
	_, err := s.OnKline(context.Background(), models.PricePoint{Timestamp: t0, Close: -1})
	assert.ErrorIs(t, err, models.ErrInvalidPrice)
}

func TestLiveSessionWarmup(t *testing.T) {
	market := stubMarket{series: map[string][]models.PricePoint{"BTCUSDT": upThenDown()[:16]}}
	s := NewLiveSession(LiveConfig{Symbol: "BTCUSDT", Interval: "1h", PaperBalance: 10000}, testParams(), nil, market, plainEvaluator{}, nil, nil, logger.Nop())

	require.NoError(t, s.Warmup(context.Background()))
	assert.True(t, s.window.Full())
}

func TestLiveSessionIgnoresReplayedKlines(t *testing.T) {
	ev := &scriptedEvaluator{fn: func(int) (models.ComputationResult, error) { return holdResult(), nil }}
	s := NewLiveSession(LiveConfig{Symbol: "BTCUSDT", Interval: "1h", PaperBalance: 10000}, testParams(), nil, nil, ev, nil, nil, logger.Nop())

	series := upThenDown()
	for _, p := range series[:15] {
		_, err := s.OnKline(context.Background(), p)
		require.NoError(t, err)
	}
	require.Equal(t, 1, ev.calls)
	before := s.window.Snapshot()

	for _, p := range []models.PricePoint{series[14], series[3]} {
		sig, err := s.OnKline(context.Background(), p)
		require.NoError(t, err)
		assert.Nil(t, sig)
	}
	assert.Equal(t, 1, ev.calls)
	assert.Equal(t, before, s.window.Snapshot())

	_, err := s.OnKline(context.Background(), series[15])
	require.NoError(t, err)
	assert.Equal(t, 2, ev.calls)
	assert.Equal(t, series[15].Close, s.window.Last())
}

func TestLiveSessionRebuildsWindowAfterGap(t *testing.T) {
	series := upThenDown()
	// history as seen when kline 19 closes: 0..19 closed, 20 still open
	market := stubMarket{series: map[string][]models.PricePoint{"BTCUSDT": series[:21]}}
	s := NewLiveSession(LiveConfig{Symbol: "BTCUSDT", Interval: "1h", PaperBalance: 10000}, testParams(), nil, market, plainEvaluator{}, nil, nil, logger.Nop())

	for _, p := range series[:15] {
		_, err := s.OnKline(context.Background(), p)
		require.NoError(t, err)
	}

	sig, err := s.OnKline(context.Background(), series[19])
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, models.Sell, sig.Signal)

	want := make([]float64, 0, 15)
	for _, p := range series[5:20] {
		want = append(want, p.Close)
	}
	assert.Equal(t, want, s.window.Snapshot())
}

func TestLiveSessionReportsBusySession(t *testing.T) {
	ev := &scriptedEvaluator{fn: func(int) (models.ComputationResult, error) { return models.ComputationResult{}, models.ErrBusy }}
	params := testParams()
	params.Period = 2
	s := NewLiveSession(LiveConfig{Symbol: "BTCUSDT", Interval: "1h", PaperBalance: 10000}, params, nil, nil, ev, nil, nil, logger.Nop())

	var err error
	for _, p := range seriesOf(100, 101, 102) {
		_, err = s.OnKline(context.Background(), p)
	}
	assert.ErrorIs(t, err, models.ErrBusy)
	assert.Equal(t, 1, ev.calls)
}
