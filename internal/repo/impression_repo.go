package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/looks-entitlements/internal/domain"
)

// CreateImpression appends an offer impression for userID.
func CreateImpression(ctx context.Context, db *gorm.DB, userID, offerKey, surface string, at time.Time) (*domain.OfferImpression, error) {
	imp := &domain.OfferImpression{
		ID:        uuid.NewString(),
		UserID:    userID,
		OfferKey:  offerKey,
		Surface:   surface,
		CreatedAt: at.UTC(),
	}
	if err := db.WithContext(ctx).Create(imp).Error; err != nil {
		return nil, err
	}
	return imp, nil
}

// ListImpressionsSince returns the user's impressions created at or after
// since, newest first.
func ListImpressionsSince(ctx context.Context, db *gorm.DB, userID string, since time.Time) ([]domain.OfferImpression, error) {
	var out []domain.OfferImpression
	err := db.WithContext(ctx).
		Where("user_id = ? AND created_at >= ?", userID, since.UTC()).
		Order("created_at DESC").
		Find(&out).Error
	return out, err
}

// ListImpressions returns a page of the user's impressions, newest first.
func ListImpressions(ctx context.Context, db *gorm.DB, userID string, limit, offset int) ([]domain.OfferImpression, int64, error) {
	q := db.WithContext(ctx).Model(&domain.OfferImpression{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []domain.OfferImpression
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error
	return out, total, err
}
