package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks bulk donation processing.
type Metrics struct {
	Processed       prometheus.Counter
	Refusals        *prometheus.CounterVec
	RecipientsCount prometheus.Histogram
	AmountSplit     prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Processed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "coinledger_bulk_donations_processed_total",
			Help: "Bulk donations split into individual donations",
		}),
		Refusals: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "coinledger_bulk_refusals_total",
			Help: "Bulk donation operations refused, by reason",
		}, []string{"reason"}),
		RecipientsCount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "coinledger_bulk_recipients",
			Help:    "Recipients per processed bulk donation",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		AmountSplit: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "coinledger_bulk_amount",
			Help:    "Total amount per processed bulk donation",
			Buckets: prometheus.ExponentialBuckets(10, 10, 8),
		}),
	}
}

func (m *Metrics) ObserveProcessed(recipients int, total int64) {
	m.Processed.Inc()
	m.RecipientsCount.Observe(float64(recipients))
	m.AmountSplit.Observe(float64(total))
}

func (m *Metrics) IncrementRefusal(reason string) {
	m.Refusals.WithLabelValues(reason).Inc()
}
