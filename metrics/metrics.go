// Package metrics exposes the relay's counters and gauges to Prometheus.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the relay's Prometheus instruments for direct
// instrumentation from transport and relay code.
type Metrics struct {
	BytesInTotal         prometheus.Counter
	BytesOutTotal        prometheus.Counter
	Subscribers          prometheus.Gauge
	FatalErrorsTotal     *prometheus.CounterVec
	KeyframeResyncsTotal prometheus.Counter
}

// New creates and registers the relay's metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BytesInTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webmrelay",
			Name:      "bytes_in_total",
			Help:      "Total bytes received from producers across all streams.",
		}),
		BytesOutTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webmrelay",
			Name:      "bytes_out_total",
			Help:      "Total bytes delivered to subscribers across all streams.",
		}),
		Subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "webmrelay",
			Name:      "subscribers",
			Help:      "Current number of connected subscribers across all streams.",
		}),
		FatalErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "webmrelay",
			Name:      "fatal_errors_total",
			Help:      "Producer connections closed by a fatal parse or validation error, by error.",
		}, []string{"error"}),
		KeyframeResyncsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "webmrelay",
			Name:      "keyframe_resyncs_total",
			Help:      "Times a subscriber's keyframe gate closed again after a segment restart.",
		}),
	}

	reg.MustRegister(
		m.BytesInTotal,
		m.BytesOutTotal,
		m.Subscribers,
		m.FatalErrorsTotal,
		m.KeyframeResyncsTotal,
	)

	return m
}
