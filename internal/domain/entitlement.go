// Package domain defines the persistence models for entitlements, the credit
// ledger mirror, offer impressions, and the billing bookkeeping tables. These
// types are mapped with GORM and form the core data layer of the service.
package domain

import "time"

// QualityTier is the derived output quality a user is entitled to.
type QualityTier string

const (
	TierStandard QualityTier = "standard"
	TierPremium  QualityTier = "premium"
)

// TierFor derives the quality tier from the subscription flag.
func TierFor(subscriptionActive bool) QualityTier {
	if subscriptionActive {
		return TierPremium
	}
	return TierStandard
}

// Entitlement is the durable record of what a user can do right now. There is
// exactly one row per user.
//
// Fields:
//   - UserID: durable user identifier (primary key).
//   - SubscriptionActive: an active recurring plan grants unlimited generation.
//   - ConsumableBalance: remaining pay-per-use credits ("looks"); never negative.
//   - QualityTier / WatermarkSuppressed: derived from SubscriptionActive.
//   - PacksPurchased: monotonically increasing count of credit packs bought.
//   - SubscriptionEventAt: timestamp of the billing event that last set the
//     subscription flag; older events are ignored.
//   - ReconciledAt: set once credits were recovered from the billing platform.
type Entitlement struct {
	UserID              string      `json:"user_id"              gorm:"type:varchar(64);primaryKey"`
	SubscriptionActive  bool        `json:"subscription_active"  gorm:"not null;default:false"`
	ConsumableBalance   int         `json:"consumable_balance"   gorm:"not null;default:0;check:consumable_balance >= 0"`
	QualityTier         QualityTier `json:"quality_tier"         gorm:"type:varchar(16);not null;default:'standard'"`
	WatermarkSuppressed bool        `json:"watermark_suppressed" gorm:"not null;default:false"`
	PacksPurchased      int         `json:"packs_purchased"      gorm:"not null;default:0"`
	SubscriptionEventAt *time.Time  `json:"-"`
	ReconciledAt        *time.Time  `json:"-"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

// TableName returns the database table name for Entitlement.
func (Entitlement) TableName() string { return "entitlements" }

// Normalize re-derives the tier attributes from SubscriptionActive.
func (e *Entitlement) Normalize() {
	e.QualityTier = TierFor(e.SubscriptionActive)
	e.WatermarkSuppressed = e.QualityTier == TierPremium
}

// CreditLedger mirrors Entitlement.ConsumableBalance in the location consulted
// by the client's spend/fetch path. After every completed add or spend the two
// balances are equal.
type CreditLedger struct {
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);primaryKey"`
	Balance   int       `json:"balance"    gorm:"not null;default:0;check:balance >= 0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for CreditLedger.
func (CreditLedger) TableName() string { return "credits" }
