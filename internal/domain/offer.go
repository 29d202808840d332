package domain

// Trigger is the in-app moment at which an offer decision is requested.
type Trigger string

const (
	TriggerTryGenerate       Trigger = "try_generate"
	TriggerOutOfLooks        Trigger = "out_of_looks"
	TriggerSaveResult        Trigger = "save_result"
	TriggerShareResult       Trigger = "share_result"
	TriggerSecondPackAttempt Trigger = "second_pack_attempt"
)

// Valid reports whether t is a known trigger.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerTryGenerate, TriggerOutOfLooks, TriggerSaveResult, TriggerShareResult, TriggerSecondPackAttempt:
		return true
	}
	return false
}

// Segment is a behavioral classification of a user.
type Segment string

const (
	SegmentTourist  Segment = "tourist"
	SegmentSampler  Segment = "sampler"
	SegmentExplorer Segment = "explorer"
	SegmentBuyer    Segment = "buyer"
	SegmentPower    Segment = "power"
)

// Valid reports whether s is a known segment.
func (s Segment) Valid() bool {
	switch s {
	case SegmentTourist, SegmentSampler, SegmentExplorer, SegmentBuyer, SegmentPower:
		return true
	}
	return false
}

// Offer keys.
const (
	OfferEntry        = "entry"
	OfferPack         = "pack"
	OfferSubscription = "subscription"
)

// Surfaces an offer can be presented on.
const (
	SurfaceSheet      = "sheet"
	SurfaceFullscreen = "fullscreen"
	SurfaceInline     = "inline"
)

// Decision reasons.
const (
	ReasonAlreadyMaximal   = "already-maximal"
	ReasonDailyLimit       = "daily-limit"
	ReasonWeeklyLimit      = "weekly-limit"
	ReasonAfterFailure     = "after-failure"
	ReasonHasCredits       = "has-credits"
	ReasonNoCandidate      = "no-candidate"
	ReasonOfferCooldown    = "offer-cooldown"
	ReasonGlobalCooldown   = "global-cooldown"
	ReasonNoPurchases      = "no-purchase-history"
	ReasonRepeatBuyer      = "repeat-buyer"
	ReasonSingleBuyer      = "single-buyer"
	ReasonEngagedFreeUser  = "engaged-free-user"
	GenerationStatusFailed = "failed"
)

// DecisionContext is the client-supplied context of a decision request.
type DecisionContext struct {
	LastGenerationStatus string  `json:"last_generation_status,omitempty" example:"succeeded"`
	Segment              Segment `json:"segment,omitempty" example:"tourist"`
	Locale               string  `json:"locale,omitempty" example:"en-US"`
}

// Decision is the result of an offer decision. When ShouldShow is false only
// Reason is set.
type Decision struct {
	ShouldShow  bool     `json:"should_show"`
	OfferKey    string   `json:"offer_key,omitempty"    example:"entry"`
	Surface     string   `json:"surface,omitempty"      example:"sheet"`
	Products    []string `json:"products,omitempty"`
	CopyVariant string   `json:"copy_variant,omitempty" example:"entry.trust.en"`
	Segment     Segment  `json:"segment,omitempty"      example:"tourist"`
	Reason      string   `json:"reason,omitempty"       example:"no-purchase-history"`
}
