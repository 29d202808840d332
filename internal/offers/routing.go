package offers

import (
	"github.com/tbourn/looks-entitlements/internal/domain"
)

// State is the part of a user's entitlement that drives routing.
// HasEntryAccess is set once the introductory entry product was bought.
type State struct {
	Segment        domain.Segment
	Balance        int
	PacksPurchased int
	HasEntryAccess bool
}

// firstPurchase reports whether the user has never bought anything.
func (st State) firstPurchase() bool {
	return st.PacksPurchased <= 0 && !st.HasEntryAccess
}

// Candidate is an offer eligible for a trigger together with the reason it
// is shown.
type Candidate struct {
	Offer  string
	Reason string
}

// purchaseReason describes the user's purchase history.
func purchaseReason(st State) string {
	switch {
	case st.firstPurchase():
		return domain.ReasonNoPurchases
	case st.PacksPurchased <= 1:
		return domain.ReasonSingleBuyer
	default:
		return domain.ReasonRepeatBuyer
	}
}

// paywall is the ladder shown when the user cannot generate. Users with no
// purchase history start at the lowest-friction offer; buyers are steered to
// the subscription with a pack as fallback. The entry offer is one-time.
func paywall(st State) []Candidate {
	r := purchaseReason(st)
	if st.firstPurchase() {
		return []Candidate{{domain.OfferEntry, r}, {domain.OfferPack, r}}
	}
	return []Candidate{{domain.OfferSubscription, r}, {domain.OfferPack, r}}
}

// Route returns the candidate offers for trigger in priority order. When no
// offer applies it returns a suppression reason instead.
func Route(trigger domain.Trigger, st State) ([]Candidate, string) {
	switch trigger {
	case domain.TriggerOutOfLooks:
		return paywall(st), ""

	case domain.TriggerTryGenerate:
		if st.Balance > 0 {
			return nil, domain.ReasonHasCredits
		}
		return paywall(st), ""

	case domain.TriggerSaveResult:
		switch st.Segment {
		case domain.SegmentBuyer, domain.SegmentPower:
			return []Candidate{{domain.OfferSubscription, purchaseReason(st)}}, ""
		case domain.SegmentExplorer:
			if st.firstPurchase() {
				return []Candidate{{domain.OfferEntry, domain.ReasonEngagedFreeUser}}, ""
			}
			return []Candidate{{domain.OfferSubscription, domain.ReasonEngagedFreeUser}}, ""
		}
		return nil, domain.ReasonNoCandidate

	case domain.TriggerShareResult:
		switch st.Segment {
		case domain.SegmentBuyer, domain.SegmentPower:
			return []Candidate{{domain.OfferSubscription, purchaseReason(st)}}, ""
		}
		return nil, domain.ReasonNoCandidate

	case domain.TriggerSecondPackAttempt:
		// A buyer reaching for another pack is steered to the subscription.
		// Without purchase history the trigger is untrusted; use the paywall.
		if st.firstPurchase() {
			return paywall(st), ""
		}
		return []Candidate{
			{domain.OfferSubscription, domain.ReasonRepeatBuyer},
			{domain.OfferPack, domain.ReasonRepeatBuyer},
		}, ""
	}
	return nil, domain.ReasonNoCandidate
}

// SurfaceFor returns where an offer for trigger is presented.
func SurfaceFor(trigger domain.Trigger) string {
	switch trigger {
	case domain.TriggerOutOfLooks:
		return domain.SurfaceFullscreen
	case domain.TriggerSaveResult, domain.TriggerShareResult:
		return domain.SurfaceInline
	default:
		return domain.SurfaceSheet
	}
}

// DeriveSegment classifies a user from stored state when the client did not
// send a segment.
func DeriveSegment(packs int, generations int64) domain.Segment {
	switch {
	case packs >= 2:
		return domain.SegmentPower
	case packs == 1:
		return domain.SegmentBuyer
	case generations == 0:
		return domain.SegmentTourist
	case generations <= 2:
		return domain.SegmentSampler
	default:
		return domain.SegmentExplorer
	}
}
