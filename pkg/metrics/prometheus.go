package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	computations   *prometheus.CounterVec
	computeLatency prometheus.Histogram
	retries        prometheus.Counter
	backtests      *prometheus.CounterVec
	trades         *prometheus.CounterVec
	lastConfidence *prometheus.GaugeVec
	fetchLatency   *prometheus.HistogramVec
	errorsTotal    *prometheus.CounterVec
}

// New creates a recorder registered on reg; nil means the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Recorder{
		computations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shadowtrade_computations_total",
				Help: "Encrypted computations by outcome",
			},
			[]string{"outcome"},
		),
		computeLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shadowtrade_computation_duration_seconds",
				Help:    "Time from submit to a finalized computation, retries included",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		retries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "shadowtrade_computation_retries_total",
				Help: "Computation attempts beyond the first",
			},
		),
		backtests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shadowtrade_backtests_total",
				Help: "Backtest runs by terminal state",
			},
			[]string{"status"},
		),
		trades: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shadowtrade_trades_total",
				Help: "Closed simulated trades by result",
			},
			[]string{"result"},
		),
		lastConfidence: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shadowtrade_last_confidence",
				Help: "Confidence of the last public signal for a symbol",
			},
			[]string{"symbol", "signal"},
		),
		fetchLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shadowtrade_market_fetch_duration_seconds",
				Help:    "Market data fetch duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source", "status"},
		),
		errorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shadowtrade_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordComputation records one Evaluate outcome ("success", "timeout",
// "unavailable", "invalid", "busy", "canceled").
func (r *Recorder) RecordComputation(outcome string, latency time.Duration) {
	r.computations.WithLabelValues(outcome).Inc()
	if outcome == "success" {
		r.computeLatency.Observe(latency.Seconds())
	}
}

func (r *Recorder) RecordRetry() {
	r.retries.Inc()
}

// RecordBacktest records a run reaching a terminal state.
func (r *Recorder) RecordBacktest(status string) {
	r.backtests.WithLabelValues(status).Inc()
}

// RecordTrade records a closed trade as a win or a loss.
func (r *Recorder) RecordTrade(pnl float64) {
	result := "loss"
	if pnl > 0 {
		result = "win"
	}
	r.trades.WithLabelValues(result).Inc()
}

// RecordSignal records the public confidence for a symbol.
func (r *Recorder) RecordSignal(symbol, signal string, confidence int) {
	r.lastConfidence.WithLabelValues(symbol, signal).Set(float64(confidence))
}

// RecordFetch records a market data fetch.
func (r *Recorder) RecordFetch(source string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.fetchLatency.WithLabelValues(source, status).Observe(d.Seconds())
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
