package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AnonymousPrefix marks platform-assigned pre-authentication identifiers.
const AnonymousPrefix = "$RCAnonymousID:"

// IsAnonymousID reports whether id is a platform anonymous identifier.
func IsAnonymousID(id string) bool {
	return strings.HasPrefix(id, AnonymousPrefix)
}

// IsDurableID reports whether id has the durable user identifier format (a UUID).
func IsDurableID(id string) bool {
	id = strings.TrimSpace(id)
	if id == "" || IsAnonymousID(id) {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// FirstDurable returns the first durable identifier in ids, normalized to
// canonical lowercase form.
func FirstDurable(ids ...string) (string, bool) {
	for _, id := range ids {
		if IsDurableID(id) {
			return uuid.MustParse(strings.TrimSpace(id)).String(), true
		}
	}
	return "", false
}

// DurableAlias searches the subscriber record for a durable identifier.
func (s *Subscriber) DurableAlias() (string, bool) {
	if s == nil {
		return "", false
	}
	ids := append([]string{s.OriginalAppUserID}, s.Aliases...)
	return FirstDurable(ids...)
}

// PurchaseKey is the dedup key of a credit-pack purchase. The store
// transaction id identifies the purchase across identities; without one the
// key falls back to (subscriber, product, purchase time).
func PurchaseKey(subscriberID, productID, transactionID string, purchasedAt time.Time) string {
	var raw string
	if transactionID != "" {
		raw = "txn|" + productID + "|" + transactionID
	} else {
		raw = "sub|" + subscriberID + "|" + productID + "|" + strconv.FormatInt(purchasedAt.UTC().UnixMilli(), 10)
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
