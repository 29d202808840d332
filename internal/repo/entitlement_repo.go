package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/looks-entitlements/internal/domain"
)

// GetEntitlement returns the entitlement row for userID or ErrNotFound.
func GetEntitlement(ctx context.Context, db *gorm.DB, userID string) (*domain.Entitlement, error) {
	var e domain.Entitlement
	err := db.WithContext(ctx).Where("user_id = ?", userID).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// InsertEntitlement creates a new row. It returns ErrDuplicate when another
// writer created the row first.
func InsertEntitlement(ctx context.Context, db *gorm.DB, e *domain.Entitlement) error {
	e.Normalize()
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// UpsertSubscription sets the subscription flag and the derived tier fields.
// The write is skipped when the stored flag was set by a newer event, so
// out-of-order deliveries never regress state. It reports whether a row was
// written.
func UpsertSubscription(ctx context.Context, db *gorm.DB, userID string, active bool, eventAt time.Time) (bool, error) {
	tier := domain.TierFor(active)
	now := time.Now().UTC()
	res := db.WithContext(ctx).Exec(`
INSERT INTO entitlements
  (user_id, subscription_active, consumable_balance, quality_tier, watermark_suppressed, packs_purchased, subscription_event_at, created_at, updated_at)
VALUES (?, ?, 0, ?, ?, 0, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
  subscription_active = excluded.subscription_active,
  quality_tier = excluded.quality_tier,
  watermark_suppressed = excluded.watermark_suppressed,
  subscription_event_at = excluded.subscription_event_at,
  updated_at = excluded.updated_at
WHERE entitlements.subscription_event_at IS NULL
   OR entitlements.subscription_event_at <= excluded.subscription_event_at`,
		userID, active, string(tier), tier == domain.TierPremium, eventAt.UTC(), now, now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// AddEntitlementCredits adds amount to the consumable balance and packs to the
// purchase counter, creating a default row when none exists.
func AddEntitlementCredits(ctx context.Context, db *gorm.DB, userID string, amount, packs int) error {
	now := time.Now().UTC()
	return db.WithContext(ctx).Exec(`
INSERT INTO entitlements
  (user_id, subscription_active, consumable_balance, quality_tier, watermark_suppressed, packs_purchased, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
  consumable_balance = entitlements.consumable_balance + excluded.consumable_balance,
  packs_purchased = entitlements.packs_purchased + excluded.packs_purchased,
  updated_at = excluded.updated_at`,
		userID, false, amount, string(domain.TierStandard), false, packs, now, now).Error
}

// DecrementEntitlementCredits subtracts amount only when the balance covers
// it. The check and the write are a single statement, so concurrent callers
// can never drive the balance negative. It reports whether the row changed.
func DecrementEntitlementCredits(ctx context.Context, db *gorm.DB, userID string, amount int) (bool, error) {
	res := db.WithContext(ctx).Exec(`
UPDATE entitlements
   SET consumable_balance = consumable_balance - ?, updated_at = ?
 WHERE user_id = ? AND consumable_balance >= ?`,
		amount, time.Now().UTC(), userID, amount)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// RecoverEntitlementCredits adds credits recovered from the billing platform
// to an existing row. Recovery happens at most once per user: the update only
// matches while reconciled_at is unset.
func RecoverEntitlementCredits(ctx context.Context, db *gorm.DB, userID string, amount, packs int, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(`
UPDATE entitlements
   SET consumable_balance = consumable_balance + ?,
       packs_purchased = packs_purchased + ?,
       reconciled_at = ?,
       updated_at = ?
 WHERE user_id = ? AND reconciled_at IS NULL`,
		amount, packs, at.UTC(), time.Now().UTC(), userID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
