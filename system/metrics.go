package system

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks per-operation latency and failures for the pool system.
type Metrics struct {
	opDuration *prometheus.HistogramVec
	opErrors   *prometheus.CounterVec
	poolCount  prometheus.Gauge
}

// NewMetrics builds and registers the system metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clamm",
			Subsystem: "system",
			Name:      "op_duration_seconds",
			Help:      "Duration of pool operations.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"op"}),
		opErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clamm",
			Subsystem: "system",
			Name:      "op_errors_total",
			Help:      "Pool operations rejected with an error.",
		}, []string{"op"}),
		poolCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "clamm",
			Subsystem: "system",
			Name:      "pools",
			Help:      "Number of live pools.",
		}),
	}
	reg.MustRegister(m.opDuration, m.opErrors, m.poolCount)
	return m
}
