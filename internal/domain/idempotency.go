package domain

import "time"

// Idempotency scopes.
const (
	// ScopeCreditPack marks a credit-pack purchase that has been applied,
	// either by the webhook or by the reconciliation job.
	ScopeCreditPack = "credit_pack"
	// ScopeSpend marks a client spend request keyed by Idempotency-Key.
	ScopeSpend = "spend"
)

// Idempotency records that an operation keyed by (user_id, scope, key) has
// already committed. Credit-pack keys never expire (ExpiresAt is nil); spend
// keys expire after the configured TTL.
type Idempotency struct {
	ID        string     `gorm:"type:char(36);primaryKey"`
	UserID    string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_user_scope_key,priority:1"`
	Scope     string     `gorm:"type:varchar(32);not null;uniqueIndex:ux_user_scope_key,priority:2"`
	Key       string     `gorm:"type:varchar(255);not null;uniqueIndex:ux_user_scope_key,priority:3"`
	Ref       string     `gorm:"type:varchar(255);not null;default:''"`
	Amount    int        `gorm:"not null;default:0"`
	CreatedAt time.Time  `gorm:"not null;autoCreateTime"`
	ExpiresAt *time.Time `gorm:"index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// UnresolvedBillingEvent journals a billing event whose subscriber could not
// be linked to a durable user. The reconciliation job recovers the purchase
// from the billing platform at the user's next sign-in.
type UnresolvedBillingEvent struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	EventID      string    `json:"event_id"      gorm:"type:varchar(128);not null;default:'';index"`
	SubscriberID string    `json:"subscriber_id" gorm:"type:varchar(255);not null;index"`
	EventType    string    `json:"event_type"    gorm:"type:varchar(64);not null"`
	ProductID    string    `json:"product_id"    gorm:"type:varchar(255);not null;default:''"`
	Aliases      string    `json:"aliases"       gorm:"type:text;not null;default:''"`
	OccurredAt   time.Time `json:"occurred_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for UnresolvedBillingEvent.
func (UnresolvedBillingEvent) TableName() string { return "unresolved_billing_events" }
