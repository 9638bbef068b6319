package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for ledger mutations.
type Metrics struct {
	MutationsTotal    *prometheus.CounterVec
	CoinsMoved        *prometheus.CounterVec
	RejectionsTotal   *prometheus.CounterVec
	MutationDuration  *prometheus.HistogramVec
	NegativeOverrides prometheus.Counter
}

// New creates a new Metrics instance with all ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		MutationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coinledger_ledger_mutations_total",
			Help: "Total number of committed ledger mutations by operation",
		}, []string{"operation"}),
		CoinsMoved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coinledger_ledger_coins_total",
			Help: "Total coins minted, burned or transferred by operation",
		}, []string{"operation"}),
		RejectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coinledger_ledger_rejections_total",
			Help: "Total number of rejected ledger mutations by operation and reason",
		}, []string{"operation", "reason"}),
		MutationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "coinledger_ledger_mutation_duration_seconds",
			Help:    "Duration of ledger mutations including the audit write",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		NegativeOverrides: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coinledger_ledger_negative_wallet_overrides_total",
			Help: "Wallet overrides that left a negative balance",
		}),
	}
}

// ObserveMutation records a committed mutation and its duration.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveMutation(operation string, coins int64, start time.Time) {
	m.MutationsTotal.WithLabelValues(operation).Inc()
	if coins > 0 {
		m.CoinsMoved.WithLabelValues(operation).Add(float64(coins))
	}
	m.MutationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// IncrementRejection records a mutation refused by validation or a balance check.
func (m *Metrics) IncrementRejection(operation, reason string) {
	m.RejectionsTotal.WithLabelValues(operation, reason).Inc()
}

func (m *Metrics) IncrementNegativeOverride() {
	m.NegativeOverrides.Inc()
}
