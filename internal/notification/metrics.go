package notification

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts notifications that never reached the transport.
type Metrics struct {
	Dropped *prometheus.CounterVec
	Failed  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Dropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coinledger_notifications_dropped_total",
			Help: "Notifications discarded because the async buffer was full or draining",
		}, []string{"kind"}),
		Failed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coinledger_notifications_failed_total",
			Help: "Notifications the transport rejected",
		}, []string{"kind"}),
	}
}

func (m *Metrics) IncrementDropped(kind Kind) {
	m.Dropped.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) IncrementFailed(kind Kind) {
	m.Failed.WithLabelValues(string(kind)).Inc()
}
