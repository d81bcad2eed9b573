// Package metrics holds the Prometheus collectors used across the service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	MentionsProcessed  *prometheus.CounterVec
	CommandsParsed     *prometheus.CounterVec
	RepliesSent        *prometheus.CounterVec
	TransfersInitiated *prometheus.CounterVec
	LedgerSubmissions  *prometheus.CounterVec
	LedgerLatency      *prometheus.HistogramVec
	TipsReconciled     prometheus.Counter
	Errors             *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with the given
// namespace. Subsequent calls return the same instance.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			MentionsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "mentions_processed_total",
				Help:      "Total mention events handled by the ingestion worker, by result.",
			}, []string{"result"}),
			CommandsParsed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_parsed_total",
				Help:      "Total commands parsed from mention text, by type.",
			}, []string{"type"}),
			RepliesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replies_sent_total",
				Help:      "Total replies posted back to mentions, by kind.",
			}, []string{"kind"}),
			TransfersInitiated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transfers_initiated_total",
				Help:      "Total transfer orchestrations, by path.",
			}, []string{"path"}),
			LedgerSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_submissions_total",
				Help:      "Total signed transactions submitted to the ledger, by outcome.",
			}, []string{"status"}),
			LedgerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ledger_submission_duration_seconds",
				Help:      "Latency distribution for ledger submission including receipt wait.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"status"}),
			TipsReconciled: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pending_tips_reconciled_total",
				Help:      "Total pending tips converted into transactions.",
			}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.MentionsProcessed,
			metricsInstance.CommandsParsed,
			metricsInstance.RepliesSent,
			metricsInstance.TransfersInitiated,
			metricsInstance.LedgerSubmissions,
			metricsInstance.LedgerLatency,
			metricsInstance.TipsReconciled,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
