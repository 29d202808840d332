package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain counters. Label values are drawn from small fixed sets (outcomes,
// reasons, offer keys) to keep cardinality bounded.
var (
	// CreditSpends counts spend attempts by outcome: spent, replayed,
	// insufficient, error.
	CreditSpends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_spend_total",
			Help: "Credit spend attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// CreditsGranted counts credits added to balances by source: webhook or
	// reconcile.
	CreditsGranted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_granted_total",
			Help: "Credits added to user balances.",
		},
		[]string{"source"},
	)

	// Reconciliations counts first-use reconciliation runs by outcome:
	// existing, created, recovered, degraded.
	Reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_reconciliations_total",
			Help: "Entitlement ensure calls by outcome.",
		},
		[]string{"outcome"},
	)

	// WebhookEvents counts processed billing events by type and outcome.
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_total",
			Help: "Billing webhook events by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	// OfferDecisions counts decide calls by offer (empty when suppressed) and reason.
	OfferDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "offer_decisions_total",
			Help: "Offer decisions by offer key and reason.",
		},
		[]string{"offer", "reason"},
	)

	// LedgerInconsistencies counts detected divergence between the
	// entitlement balance and its mirror.
	LedgerInconsistencies = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "credit_ledger_inconsistencies_total",
			Help: "Detected mismatches between entitlement and mirrored credit balances.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		CreditSpends,
		CreditsGranted,
		Reconciliations,
		WebhookEvents,
		OfferDecisions,
		LedgerInconsistencies,
	)
}
