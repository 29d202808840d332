package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/looks-entitlements/internal/domain"
)

func TestDecodeWebhook_CreditPack(t *testing.T) {
	raw := []byte(`{
		"api_version": "1.0",
		"event": {
			"id": "evt-1",
			"type": "non_renewing_purchase",
			"app_user_id": "$RCAnonymousID:abc",
			"original_app_user_id": "` + durable + `",
			"aliases": ["$RCAnonymousID:abc", "` + durable + `", " "],
			"product_id": " looks_10 ",
			"original_transaction_id": "otx-9",
			"purchased_at_ms": 1717243200000,
			"event_timestamp_ms": 1717243201000
		}
	}`)

	ev, err := DecodeWebhook(raw)
	require.NoError(t, err)
	assert.Equal(t, "evt-1", ev.ID)
	assert.Equal(t, domain.EventNonRenewingPurchase, ev.Type)
	assert.Equal(t, "$RCAnonymousID:abc", ev.SubscriberID)
	assert.Equal(t, []string{durable}, ev.Aliases)
	assert.Equal(t, "looks_10", ev.ProductID)
	assert.Equal(t, "otx-9", ev.TransactionID)
	assert.Equal(t, time.UnixMilli(1717243200000).UTC(), ev.PurchasedAt)
	assert.Equal(t, time.UnixMilli(1717243201000).UTC(), ev.OccurredAt)
}

func TestDecodeWebhook_SingleEntitlementAndTimeFallback(t *testing.T) {
	raw := []byte(`{"event":{"type":"RENEWAL","app_user_id":"u","entitlement_id":"premium","purchased_at_ms":1717243200000}}`)

	ev, err := DecodeWebhook(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"premium"}, ev.EntitlementIDs)
	assert.Equal(t, ev.PurchasedAt, ev.OccurredAt)
	assert.Empty(t, ev.Aliases)
}

func TestDecodeWebhook_NoTimestampsUsesNow(t *testing.T) {
	before := time.Now().UTC().Add(-time.Second)
	ev, err := DecodeWebhook([]byte(`{"event":{"type":"CANCELLATION","app_user_id":"u"}}`))
	require.NoError(t, err)
	assert.True(t, ev.OccurredAt.After(before))
	assert.True(t, ev.PurchasedAt.IsZero())
}

func TestDecodeWebhook_MalformedInputs(t *testing.T) {
	for _, raw := range []string{``, `not json`, `{"event":{}}`, `{"event":{"type":"  "}}`} {
		_, err := DecodeWebhook([]byte(raw))
		assert.ErrorIs(t, err, ErrMalformedEvent, "input %q", raw)
	}
}
