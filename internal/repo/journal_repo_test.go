package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/looks-entitlements/internal/domain"
)

func TestUnresolvedEvents_JournalAndFilter(t *testing.T) {
	db := newTestDB(t, &domain.UnresolvedBillingEvent{})
	ctx := context.Background()

	for i, sub := range []string{"$RCAnonymousID:a", "$RCAnonymousID:b", "$RCAnonymousID:a"} {
		ev := domain.BillingEvent{
			ID:           uuid.NewString(),
			Type:         domain.EventNonRenewingPurchase,
			SubscriberID: sub,
			Aliases:      []string{"x", "y"},
			ProductID:    "looks_30",
			OccurredAt:   time.Date(2025, 6, 1, i, 0, 0, 0, time.UTC),
		}
		rec, err := CreateUnresolvedEvent(ctx, db, ev)
		if err != nil {
			t.Fatalf("CreateUnresolvedEvent: %v", err)
		}
		if rec.Aliases != "x,y" || rec.EventType != "NON_RENEWING_PURCHASE" {
			t.Fatalf("unexpected journal row: %+v", rec)
		}
	}

	all, err := ListUnresolvedEvents(ctx, db, "", 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("list all: len=%d err=%v", len(all), err)
	}
	onlyA, err := ListUnresolvedEvents(ctx, db, "$RCAnonymousID:a", 0)
	if err != nil || len(onlyA) != 2 {
		t.Fatalf("filter: len=%d err=%v", len(onlyA), err)
	}
	limited, _ := ListUnresolvedEvents(ctx, db, "", 1)
	if len(limited) != 1 {
		t.Fatalf("limit: len=%d", len(limited))
	}
}

func TestCountSuccessfulGenerations_Journal(t *testing.T) {
	db := newTestDB(t, &domain.Generation{})
	ctx := context.Background()

	rows := []domain.Generation{
		{ID: uuid.NewString(), UserID: "u1", Status: domain.GenerationSucceeded},
		{ID: uuid.NewString(), UserID: "u1", Status: domain.GenerationSucceeded},
		{ID: uuid.NewString(), UserID: "u1", Status: domain.GenerationStatusFailed},
		{ID: uuid.NewString(), UserID: "u2", Status: domain.GenerationSucceeded},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	n, err := CountSuccessfulGenerations(ctx, db, "u1")
	if err != nil || n != 2 {
		t.Fatalf("u1: n=%d err=%v", n, err)
	}
	if n, _ := CountSuccessfulGenerations(ctx, db, "nobody"); n != 0 {
		t.Fatalf("nobody: n=%d", n)
	}
}
