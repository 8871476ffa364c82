package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Domain counters for the metering core. Registered on the default registry
// so they are served by the same /metrics listener as the HTTP metrics.
var (
	AdmissionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "metering",
		Name:      "admission_decisions_total",
		Help:      "Entitlement gate decisions partitioned by action, outcome and limit type.",
	}, []string{"action", "allowed", "limit_type"})

	DuplicateUsageEvents = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "metering",
		Name:      "usage_duplicate_events_total",
		Help:      "Usage ledger writes recognized as replays and resolved as no-ops.",
	})

	BillingWebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "metering",
		Name:      "billing_webhook_events_total",
		Help:      "Billing provider events partitioned by type and outcome.",
	}, []string{"type", "outcome"})

	SummaryDriftCorrections = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "metering",
		Name:      "usage_summary_drift_corrections_total",
		Help:      "Reconciliation passes that found the cached summary off by more than the tolerance.",
	})

	StaleBillingEvents = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "metering",
		Name:      "billing_stale_events_total",
		Help:      "Billing events discarded because a newer event was already applied.",
	})
)
