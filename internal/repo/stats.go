// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/looks-entitlements/internal/domain"
)

// EntitlementVersion returns the mirrored balance and the newest UpdatedAt
// across the user's entitlement and credits rows. It returns (0, nil, nil)
// when the user has neither row.
//
// Return values:
//   - balance:      the mirrored credit balance, 0 if the row is missing
//   - maxUpdatedAt: pointer to the greatest UpdatedAt, or nil if no rows
//   - err:          database error, if any
func EntitlementVersion(ctx context.Context, db *gorm.DB, userID string) (balance int, maxUpdatedAt *time.Time, err error) {
	// Read rows rather than MAX(): SQLite returns MAX() over DATETIME as TEXT.
	var ent struct {
		UpdatedAt time.Time
	}
	q := db.WithContext(ctx).Model(&domain.Entitlement{}).Where("user_id = ?", userID).Select("updated_at").Limit(1)
	res := q.Scan(&ent)
	if res.Error != nil {
		return 0, nil, res.Error
	}
	if res.RowsAffected > 0 {
		t := ent.UpdatedAt
		maxUpdatedAt = &t
	}

	var led struct {
		Balance   int
		UpdatedAt time.Time
	}
	res = db.WithContext(ctx).Model(&domain.CreditLedger{}).Where("user_id = ?", userID).Select("balance, updated_at").Limit(1).Scan(&led)
	if res.Error != nil {
		return 0, nil, res.Error
	}
	if res.RowsAffected > 0 {
		balance = led.Balance
		if maxUpdatedAt == nil || led.UpdatedAt.After(*maxUpdatedAt) {
			t := led.UpdatedAt
			maxUpdatedAt = &t
		}
	}
	return balance, maxUpdatedAt, nil
}
