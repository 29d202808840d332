package billing

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/tbourn/looks-entitlements/internal/domain"
)

// ErrMalformedEvent is returned when a webhook body cannot be decoded.
var ErrMalformedEvent = errors.New("malformed billing event")

// WebhookPayload is the body the platform posts to the webhook.
type WebhookPayload struct {
	APIVersion string       `json:"api_version"`
	Event      WebhookEvent `json:"event"`
}

// WebhookEvent is the loosely typed event object of a webhook payload.
type WebhookEvent struct {
	ID                    string   `json:"id"`
	Type                  string   `json:"type"`
	AppUserID             string   `json:"app_user_id"`
	OriginalAppUserID     string   `json:"original_app_user_id"`
	Aliases               []string `json:"aliases"`
	ProductID             string   `json:"product_id"`
	EntitlementIDs        []string `json:"entitlement_ids"`
	EntitlementID         *string  `json:"entitlement_id"`
	TransactionID         string   `json:"transaction_id"`
	OriginalTransactionID string   `json:"original_transaction_id"`
	PurchasedAtMs         int64    `json:"purchased_at_ms"`
	EventTimestampMs      int64    `json:"event_timestamp_ms"`
}

// DecodeWebhook parses raw into a BillingEvent. The event type is kept as
// sent; unknown types are filtered later by their Effect.
func DecodeWebhook(raw []byte) (domain.BillingEvent, error) {
	var p WebhookPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.BillingEvent{}, ErrMalformedEvent
	}
	ev := p.Event
	if strings.TrimSpace(ev.Type) == "" {
		return domain.BillingEvent{}, ErrMalformedEvent
	}

	subscriber := strings.TrimSpace(ev.AppUserID)
	if subscriber == "" {
		subscriber = strings.TrimSpace(ev.OriginalAppUserID)
	}

	aliases := make([]string, 0, len(ev.Aliases)+1)
	seen := map[string]struct{}{subscriber: {}}
	for _, a := range append(ev.Aliases, ev.OriginalAppUserID) {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		aliases = append(aliases, a)
	}

	ents := append([]string(nil), ev.EntitlementIDs...)
	if ev.EntitlementID != nil && *ev.EntitlementID != "" && len(ents) == 0 {
		ents = append(ents, *ev.EntitlementID)
	}

	txn := ev.TransactionID
	if txn == "" {
		txn = ev.OriginalTransactionID
	}

	out := domain.BillingEvent{
		ID:             ev.ID,
		Type:           domain.BillingEventType(strings.ToUpper(strings.TrimSpace(ev.Type))),
		SubscriberID:   subscriber,
		Aliases:        aliases,
		ProductID:      strings.TrimSpace(ev.ProductID),
		EntitlementIDs: ents,
		TransactionID:  txn,
		OccurredAt:     msToTime(ev.EventTimestampMs),
		PurchasedAt:    msToTime(ev.PurchasedAtMs),
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = out.PurchasedAt
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now().UTC()
	}
	return out, nil
}

func msToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
