package ratelimit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultAllowed  = "allowed"
	resultRejected = "rejected"
	resultError    = "error"
)

// Metrics contains Prometheus collectors for admission decisions.
type Metrics struct {
	decisions     *prometheus.CounterVec
	backendErrors *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
}

// NewMetrics registers the admission collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		decisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admission_decisions_total",
				Help: "Total number of admission decisions by strategy and result",
			},
			[]string{"strategy", "result"},
		),

		backendErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "admission_backend_errors_total",
				Help: "Total number of rate limit checks that failed on the backend",
			},
			[]string{"strategy"},
		),

		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "admission_check_duration_seconds",
				Help:    "Latency of rate limit checks including backend round trips",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"strategy"},
		),
	}
}

// observe is safe on a nil receiver.
func (m *Metrics) observe(strategy Strategy, d Decision, err error, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.checkDuration.WithLabelValues(string(strategy)).Observe(elapsed.Seconds())

	switch {
	case err != nil:
		m.backendErrors.WithLabelValues(string(strategy)).Inc()
		m.decisions.WithLabelValues(string(strategy), resultError).Inc()
	case d.Allowed:
		m.decisions.WithLabelValues(string(strategy), resultAllowed).Inc()
	default:
		m.decisions.WithLabelValues(string(strategy), resultRejected).Inc()
	}
}
