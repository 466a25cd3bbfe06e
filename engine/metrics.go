package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK             = "ok"
	outcomeStatementError = "statement_error"
	outcomeConnection     = "connection_error"
	outcomeInvalid        = "invalid"
)

type metrics struct {
	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	statements *prometheus.HistogramVec
}

// newMetrics registers with reg. A nil reg leaves the collectors
// unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		executions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sqljudge",
				Subsystem: "engine",
				Name:      "executions_total",
				Help:      "Total number of executed scripts",
			},
			[]string{"engine", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sqljudge",
				Subsystem: "engine",
				Name:      "execution_duration_seconds",
				Help:      "Script duration in seconds, connection included",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"engine"},
		),
		statements: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "sqljudge",
				Subsystem: "engine",
				Name:      "statement_duration_seconds",
				Help:      "Statement duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"engine", "kind"},
		),
	}
}

func (m *metrics) observe(e Engine, outcome string, elapsed time.Duration) {
	m.executions.WithLabelValues(string(e), outcome).Inc()
	m.duration.WithLabelValues(string(e)).Observe(elapsed.Seconds())
}
