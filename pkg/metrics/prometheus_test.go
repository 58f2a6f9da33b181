package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordComputation("success", 120*time.Millisecond)
	r.RecordComputation("success", 80*time.Millisecond)
	r.RecordComputation("unavailable", 0)
	r.RecordRetry()
	r.RecordTrade(12.5)
	r.RecordTrade(-3)
	r.RecordTrade(0)
	r.RecordBacktest("completed")
	r.RecordFetch("binance", time.Second, errors.New("boom"))

	if got := testutil.ToFloat64(r.computations.WithLabelValues("success")); got != 2 {
		t.Errorf("success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.computations.WithLabelValues("unavailable")); got != 1 {
		t.Errorf("unavailable = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.retries); got != 1 {
		t.Errorf("retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.trades.WithLabelValues("loss")); got != 2 {
		t.Errorf("losses = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.backtests.WithLabelValues("completed")); got != 1 {
		t.Errorf("backtests = %v, want 1", got)
	}
}

func TestRecorderSeparateRegistries(t *testing.T) {
	// two recorders on distinct registries must not collide
	New(prometheus.NewRegistry())
	New(prometheus.NewRegistry())
}
