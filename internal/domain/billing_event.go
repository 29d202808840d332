package domain

import "time"

// BillingEventType is the allow-listed set of billing platform event types.
type BillingEventType string

const (
	EventInitialPurchase      BillingEventType = "INITIAL_PURCHASE"
	EventRenewal              BillingEventType = "RENEWAL"
	EventUncancellation       BillingEventType = "UNCANCELLATION"
	EventSubscriptionExtended BillingEventType = "SUBSCRIPTION_EXTENDED"
	EventTrialStarted         BillingEventType = "TRIAL_STARTED"
	EventTrialConverted       BillingEventType = "TRIAL_CONVERTED"
	EventExpiration           BillingEventType = "EXPIRATION"
	EventCancellation         BillingEventType = "CANCELLATION"
	EventBillingIssue         BillingEventType = "BILLING_ISSUE"
	EventNonRenewingPurchase  BillingEventType = "NON_RENEWING_PURCHASE"
)

// SubscriptionEffect is what a billing event does to the subscription flag.
type SubscriptionEffect int

const (
	EffectNone SubscriptionEffect = iota
	EffectActivate
	EffectDeactivate
	EffectCreditPack
)

// Effect maps an event type to its effect. Unknown types map to EffectNone.
func (t BillingEventType) Effect() SubscriptionEffect {
	switch t {
	case EventInitialPurchase, EventRenewal, EventUncancellation, EventSubscriptionExtended,
		EventTrialStarted, EventTrialConverted:
		return EffectActivate
	case EventExpiration, EventCancellation, EventBillingIssue:
		return EffectDeactivate
	case EventNonRenewingPurchase:
		return EffectCreditPack
	default:
		return EffectNone
	}
}

// BillingEvent is a billing platform event received by the webhook. It is
// consumed once but may be delivered more than once.
type BillingEvent struct {
	ID             string
	Type           BillingEventType
	SubscriberID   string
	Aliases        []string
	ProductID      string
	EntitlementIDs []string
	TransactionID  string
	PurchasedAt    time.Time
	OccurredAt     time.Time
}
