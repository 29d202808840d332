package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/looks-entitlements/internal/domain"
)

// CountSuccessfulGenerations returns how many generations the user completed.
func CountSuccessfulGenerations(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.Generation{}).
		Where("user_id = ? AND status = ?", userID, domain.GenerationSucceeded).
		Count(&n).Error
	return n, err
}
