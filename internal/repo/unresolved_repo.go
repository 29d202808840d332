package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/looks-entitlements/internal/domain"
)

// CreateUnresolvedEvent journals a billing event that could not be attributed
// to a durable user.
func CreateUnresolvedEvent(ctx context.Context, db *gorm.DB, ev domain.BillingEvent) (*domain.UnresolvedBillingEvent, error) {
	rec := &domain.UnresolvedBillingEvent{
		ID:           uuid.NewString(),
		EventID:      ev.ID,
		SubscriberID: ev.SubscriberID,
		EventType:    string(ev.Type),
		ProductID:    ev.ProductID,
		Aliases:      strings.Join(ev.Aliases, ","),
		OccurredAt:   ev.OccurredAt.UTC(),
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// ListUnresolvedEvents returns journaled events, newest first. An empty
// subscriberID lists all of them.
func ListUnresolvedEvents(ctx context.Context, db *gorm.DB, subscriberID string, limit int) ([]domain.UnresolvedBillingEvent, error) {
	q := db.WithContext(ctx).Model(&domain.UnresolvedBillingEvent{})
	if subscriberID != "" {
		q = q.Where("subscriber_id = ?", subscriberID)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.UnresolvedBillingEvent
	err := q.Order("created_at DESC").Find(&out).Error
	return out, err
}
