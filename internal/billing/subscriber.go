package billing

import (
	"sort"
	"time"
)

// Subscriber is the subset of the platform's subscriber record this service
// reads.
type Subscriber struct {
	OriginalAppUserID string                       `json:"original_app_user_id"`
	Aliases           []string                     `json:"aliases"`
	Entitlements      map[string]EntitlementGrant  `json:"entitlements"`
	Subscriptions     map[string]Subscription      `json:"subscriptions"`
	NonSubscriptions  map[string][]NonSubscription `json:"non_subscriptions"`
}

// EntitlementGrant is a named entitlement. A nil ExpiresDate is a lifetime grant.
type EntitlementGrant struct {
	ProductIdentifier string     `json:"product_identifier"`
	PurchaseDate      *time.Time `json:"purchase_date"`
	ExpiresDate       *time.Time `json:"expires_date"`
}

// Subscription is a raw recurring subscription keyed by product.
type Subscription struct {
	PurchaseDate            *time.Time `json:"purchase_date"`
	ExpiresDate             *time.Time `json:"expires_date"`
	UnsubscribeDetectedAt   *time.Time `json:"unsubscribe_detected_at"`
	BillingIssuesDetectedAt *time.Time `json:"billing_issues_detected_at"`
	Store                   string     `json:"store"`
}

// NonSubscription is a one-off purchase line item.
type NonSubscription struct {
	ID                 string    `json:"id"`
	PurchaseDate       time.Time `json:"purchase_date"`
	Store              string    `json:"store"`
	StoreTransactionID string    `json:"store_transaction_id"`
}

// CreditTable converts product identifiers to credit quantities.
type CreditTable interface {
	Credits(productID string) (int, bool)
}

// Purchase is a recognized credit-pack purchase.
type Purchase struct {
	ProductID     string
	TransactionID string
	PurchasedAt   time.Time
	Credits       int
}

// Active reports whether the subscriber currently holds an unlimited plan.
// The named entitlement is checked first; any unexpired raw subscription
// also counts, which covers products missing from the entitlement mapping.
func (s *Subscriber) Active(entitlementID string, now time.Time) bool {
	if s == nil {
		return false
	}
	if g, ok := s.Entitlements[entitlementID]; ok {
		if g.ExpiresDate == nil || g.ExpiresDate.After(now) {
			return true
		}
	}
	for _, sub := range s.Subscriptions {
		if sub.ExpiresDate != nil && sub.ExpiresDate.After(now) {
			return true
		}
	}
	return false
}

// CreditPurchases lists every non-subscription purchase of a known credit
// pack, ordered by purchase time.
func (s *Subscriber) CreditPurchases(table CreditTable) []Purchase {
	if s == nil {
		return nil
	}
	var out []Purchase
	for productID, items := range s.NonSubscriptions {
		credits, ok := table.Credits(productID)
		if !ok {
			continue
		}
		for _, it := range items {
			txn := it.StoreTransactionID
			if txn == "" {
				txn = it.ID
			}
			out = append(out, Purchase{
				ProductID:     productID,
				TransactionID: txn,
				PurchasedAt:   it.PurchaseDate.UTC(),
				Credits:       credits,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PurchasedAt.Equal(out[j].PurchasedAt) {
			return out[i].PurchasedAt.Before(out[j].PurchasedAt)
		}
		return out[i].TransactionID < out[j].TransactionID
	})
	return out
}

// TotalCredits sums the credits of ps.
func TotalCredits(ps []Purchase) int {
	total := 0
	for _, p := range ps {
		total += p.Credits
	}
	return total
}
