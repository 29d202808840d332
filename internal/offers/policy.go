// Package offers holds the offer routing table: which offers a trigger may
// lead to for a given user state, in priority order, plus the frequency caps
// and cooldowns that gate them. Everything here is pure; the service layer
// supplies the state and the impression history.
package offers

import (
	"time"

	"github.com/tbourn/looks-entitlements/internal/domain"
)

// Policy holds the frequency caps and cooldowns.
type Policy struct {
	DailyCap          int
	WeeklyCap         int
	SameOfferCooldown time.Duration
	GlobalCooldown    time.Duration
}

// DefaultPolicy returns the production caps: 2 per day, 5 per week, 24h
// between repeats of a gated offer and 4h between any two offers.
func DefaultPolicy() Policy {
	return Policy{
		DailyCap:          2,
		WeeklyCap:         5,
		SameOfferCooldown: 24 * time.Hour,
		GlobalCooldown:    4 * time.Hour,
	}
}

// Window is how far back impressions must be loaded to evaluate the policy.
func (p Policy) Window() time.Duration {
	w := 7 * 24 * time.Hour
	if p.SameOfferCooldown > w {
		w = p.SameOfferCooldown
	}
	if p.GlobalCooldown > w {
		w = p.GlobalCooldown
	}
	return w
}

// History summarizes a user's recent impressions.
type History struct {
	Day         int
	Week        int
	LastAny     time.Time
	LastByOffer map[string]time.Time
}

// Summarize folds impressions into a History relative to now.
func Summarize(imps []domain.OfferImpression, now time.Time) History {
	h := History{LastByOffer: make(map[string]time.Time)}
	dayStart := now.Add(-24 * time.Hour)
	weekStart := now.Add(-7 * 24 * time.Hour)
	for _, imp := range imps {
		at := imp.CreatedAt
		if at.After(dayStart) {
			h.Day++
		}
		if at.After(weekStart) {
			h.Week++
		}
		if at.After(h.LastAny) {
			h.LastAny = at
		}
		if at.After(h.LastByOffer[imp.OfferKey]) {
			h.LastByOffer[imp.OfferKey] = at
		}
	}
	return h
}

// CooldownGated reports whether repeats of offer are spaced by the
// same-offer cooldown. One-off packs are not: a user who is out of credits
// may need one again soon.
func CooldownGated(offer string) bool {
	return offer == domain.OfferSubscription || offer == domain.OfferEntry
}

// InCooldown reports whether last falls inside the window ending at now.
func InCooldown(last, now time.Time, window time.Duration) bool {
	return window > 0 && !last.IsZero() && now.Sub(last) < window
}
