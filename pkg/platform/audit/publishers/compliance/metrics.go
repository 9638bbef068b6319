package compliance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	audit "coinledger/pkg/platform/audit"
)

// Metrics holds Prometheus metrics for compliance audit emission.
type Metrics struct {
	EventsEmitted   *prometheus.CounterVec
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with compliance audit metrics registered.
func NewMetrics() *Metrics {
	return &Metrics{
		EventsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coinledger_audit_records_emitted_total",
			Help: "Total number of audit records persisted, by operation",
		}, []string{"operation"}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coinledger_audit_persist_failures_total",
			Help: "Total number of audit records that failed to persist",
		}),
		PersistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "coinledger_audit_persist_duration_seconds",
			Help:    "Time taken to persist an audit record",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25},
		}),
	}
}

// IncEventsEmitted increments the emitted counter for an operation.
func (m *Metrics) IncEventsEmitted(op audit.Operation) {
	m.EventsEmitted.WithLabelValues(string(op)).Inc()
}

// IncPersistFailures increments the persist failures counter.
func (m *Metrics) IncPersistFailures() {
	m.PersistFailures.Inc()
}

// ObservePersistDuration records how long a persist took.
func (m *Metrics) ObservePersistDuration(seconds float64) {
	m.PersistDuration.Observe(seconds)
}
