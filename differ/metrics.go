package differ

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the differ's Prometheus collectors.
type Metrics struct {
	diffDuration *prometheus.HistogramVec
	diffs        *prometheus.CounterVec
}

// NewMetrics creates the differ collectors and registers them with registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		diffDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "cpamm",
				Subsystem: "differ",
				Name:      "diff_duration_seconds",
				Help:      "Time spent computing a state diff.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{},
		),
		diffs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "cpamm",
				Subsystem: "differ",
				Name:      "diffs_total",
				Help:      "State diffs computed, by outcome.",
			},
			[]string{"status"},
		),
	}
	registry.MustRegister(m.diffDuration, m.diffs)
	return m
}
