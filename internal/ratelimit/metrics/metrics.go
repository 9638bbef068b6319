package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected *prometheus.CounterVec
	Errors   prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coinledger_ratelimit_rejected_total",
			Help: "Requests refused with 429, by route class",
		}, []string{"class"}),
		Errors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coinledger_ratelimit_store_errors_total",
			Help: "Limiter store failures; the request is let through",
		}),
	}
}

func (m *Metrics) IncrementRejected(class string) {
	if m == nil {
		return
	}
	m.Rejected.WithLabelValues(class).Inc()
}

func (m *Metrics) IncrementErrors() {
	if m == nil {
		return
	}
	m.Errors.Inc()
}
