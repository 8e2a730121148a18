// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tipbot_events_processed_total",
		Help: "Platform events dispatched, labeled by audit outcome",
	}, []string{"outcome"})

	EventsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tipbot_events_skipped_total",
		Help: "Fetched events that were not dispatched, labeled by reason",
	}, []string{"reason"})

	TransactionsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tipbot_transactions_submitted_total",
		Help: "Transactions handed to the chain, labeled by kind",
	}, []string{"kind"})

	TransactionsFinalized = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tipbot_transactions_finalized_total",
		Help: "Tracked transactions that reached a terminal state, labeled by kind and state",
	}, []string{"kind", "state"})

	PendingTransactions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tipbot_pending_transactions",
		Help: "Submitted transactions awaiting confirmation",
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tipbot_cycle_duration_seconds",
		Help:    "Duration of one event loop cycle",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tipbot_outbox_messages_total",
		Help: "Outbox notifications handled by the poller, labeled by result",
	}, []string{"result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tipbot_admin_http_requests_total",
		Help: "Admin API requests, labeled by method, route and status",
	}, []string{"method", "route", "status"})
)
