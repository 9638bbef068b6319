package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts purchase decisions.
type Metrics struct {
	Decisions     *prometheus.CounterVec
	CoinsCredited prometheus.Counter
	Refusals      *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coinledger_purchase_decisions_total",
			Help: "Purchase requests approved or rejected",
		}, []string{"decision"}),
		CoinsCredited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coinledger_purchase_coins_credited_total",
			Help: "Coins credited to agents through approved purchases",
		}),
		Refusals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coinledger_purchase_refusals_total",
			Help: "Approve or reject attempts refused by the state machine",
		}, []string{"reason"}),
	}
}

func (m *Metrics) IncrementApproved(quantity int64) {
	m.Decisions.WithLabelValues("approved").Inc()
	m.CoinsCredited.Add(float64(quantity))
}

func (m *Metrics) IncrementRejected() {
	m.Decisions.WithLabelValues("rejected").Inc()
}

func (m *Metrics) IncrementRefusal(reason string) {
	m.Refusals.WithLabelValues(reason).Inc()
}
