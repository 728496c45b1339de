// Package observability provides Prometheus metrics instrumentation.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsActive tracks connected client sessions.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_sessions_active",
			Help: "Number of active client sessions",
		},
	)

	// OutboxQueuedEvents tracks events waiting in every delivery queue.
	OutboxQueuedEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_outbox_queued_events",
			Help: "Events enqueued and not yet written to a connection",
		},
	)

	// OutboxBatchSize tracks how many events a single drain carries.
	OutboxBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chat_outbox_batch_size",
			Help:    "Number of events written per drain",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 1000},
		},
	)

	// NotificationsTotal tracks deliveries to observers.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_notifications_total",
			Help: "Notifications delivered to observers",
		},
		[]string{"topic"},
	)

	// ObserversDropped tracks observers removed after repeated failures.
	ObserversDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_observers_dropped_total",
			Help: "Observers dropped after repeated delivery failures",
		},
	)

	// PersistRetries tracks retried writes per entity namespace.
	PersistRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_store_persist_retries_total",
			Help: "Entity writes retried after a persistence error",
		},
		[]string{"namespace"},
	)

	// MembershipInconsistencies tracks user/conversation views left diverged.
	MembershipInconsistencies = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_membership_inconsistencies_total",
			Help: "Cross-entity mutations flagged for repair",
		},
	)

	// WorkerRestarts tracks supervised workers restarted after a failure.
	WorkerRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_worker_restarts_total",
			Help: "Supervised workers restarted after an error or a panic",
		},
		[]string{"worker"},
	)

	// Reconciliations tracks session reconciliation passes.
	Reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_reconciliations_total",
			Help: "Session subscription reconciliation passes",
		},
		[]string{"result"},
	)
)

// RecordNotification increments the delivery counter of a topic.
func RecordNotification(topic string) {
	NotificationsTotal.WithLabelValues(topic).Inc()
}

// RecordReconciliation increments the reconciliation counter.
// result is one of "unchanged", "resubscribed" or "error".
func RecordReconciliation(result string) {
	Reconciliations.WithLabelValues(result).Inc()
}
