package outbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the outbox relay.
type Metrics struct {
	Published       prometheus.Counter
	PublishFailures prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Published: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coinledger_audit_outbox_published_total",
			Help: "Total number of outbox entries published to the event stream",
		}),
		PublishFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coinledger_audit_outbox_publish_failures_total",
			Help: "Total number of outbox batches that failed to publish",
		}),
	}
}

func (m *Metrics) AddPublished(n int) {
	m.Published.Add(float64(n))
}

func (m *Metrics) IncPublishFailures() {
	m.PublishFailures.Inc()
}
