package domain

import "time"

// OfferImpression is an append-only record of an offer shown to a user. Rows
// are never mutated or deleted; they only feed frequency caps and cooldowns.
type OfferImpression struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_impressions_user_time,priority:1;index:idx_impressions_user_offer,priority:1"`
	OfferKey  string    `json:"offer_key"  gorm:"type:varchar(32);not null;index:idx_impressions_user_offer,priority:2"`
	Surface   string    `json:"surface"    gorm:"type:varchar(32);not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;index:idx_impressions_user_time,priority:2;index:idx_impressions_user_offer,priority:3"`
}

// TableName returns the database table name for OfferImpression.
func (OfferImpression) TableName() string { return "offer_impressions" }

// Generation is a row of the generation flow's usage history. This service
// only counts successful rows per user.
type Generation struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string    `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_generations_user_status,priority:1"`
	Status    string    `json:"status"     gorm:"type:varchar(16);not null;index:idx_generations_user_status,priority:2"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Generation.
func (Generation) TableName() string { return "generations" }

// GenerationSucceeded is the status value counted as a consumed look.
const GenerationSucceeded = "succeeded"
