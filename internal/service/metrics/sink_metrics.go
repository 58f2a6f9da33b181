package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	SinkLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "shadowtrade",
			Subsystem: "record_sink",
			Name:      "latency_seconds",
			Help:      "Latency of storing consumed public records",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	SinkRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "shadowtrade",
			Subsystem: "record_sink",
			Name:      "rejected_total",
			Help:      "Consumed records rejected before storage, by reason",
		},
		[]string{"reason"},
	)
)

// Register adds the sink collectors to the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(SinkLatency, SinkRejected)
	})
}
