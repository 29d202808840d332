package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/looks-entitlements/internal/domain"
)

func TestGetIdempotency_EmptyKey_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})

	rec, err := GetIdempotency(context.Background(), db, "u1", domain.ScopeSpend, "   ", time.Now().UTC())
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for empty key, got (%v, %v)", rec, err)
	}
}

func TestGetIdempotency_ExpiredOrMissing_ReturnsNotFound(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	now := time.Now().UTC()

	expired := now.Add(-time.Hour)
	exp := &domain.Idempotency{
		ID:        "expired",
		UserID:    "u1",
		Scope:     domain.ScopeSpend,
		Key:       "k1",
		CreatedAt: now.Add(-2 * time.Hour),
		ExpiresAt: &expired,
	}
	if err := db.Create(exp).Error; err != nil {
		t.Fatalf("seed expired: %v", err)
	}

	rec, err := GetIdempotency(context.Background(), db, "u1", domain.ScopeSpend, "k1", now)
	if rec != nil || err != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for expired, got (%v, %v)", rec, err)
	}

	rec2, err2 := GetIdempotency(context.Background(), db, "u1", domain.ScopeSpend, "missing", now)
	if rec2 != nil || err2 != ErrNotFound {
		t.Fatalf("expected (nil, ErrNotFound) for missing, got (%v, %v)", rec2, err2)
	}
}

func TestGetIdempotency_PermanentRecordNeverExpires(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})

	if _, err := CreateIdempotency(context.Background(), db, "u1", domain.ScopeCreditPack, "txn-1", "looks_30", 30, 0); err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	farFuture := time.Now().UTC().AddDate(10, 0, 0)
	rec, err := GetIdempotency(context.Background(), db, "u1", domain.ScopeCreditPack, "txn-1", farFuture)
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if rec.ExpiresAt != nil || rec.Ref != "looks_30" || rec.Amount != 30 {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestCreateIdempotency_SuccessAndDuplicate(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})

	ttl := 90 * time.Minute
	start := time.Now().UTC()

	rec, err := CreateIdempotency(context.Background(), db, "u9", domain.ScopeSpend, "k9", "", 1, ttl)
	if err != nil {
		t.Fatalf("CreateIdempotency error: %v", err)
	}
	if rec == nil || rec.ID == "" || rec.UserID != "u9" || rec.Scope != domain.ScopeSpend || rec.Key != "k9" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.ExpiresAt == nil || !(rec.ExpiresAt.After(start) && rec.ExpiresAt.Before(start.Add(2*time.Hour))) {
		t.Fatalf("unexpected ExpiresAt: %v", rec.ExpiresAt)
	}

	if _, err := CreateIdempotency(context.Background(), db, "u9", domain.ScopeSpend, "k9", "", 1, ttl); err != ErrDuplicate {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// Same key under another scope is a different record.
	if _, err := CreateIdempotency(context.Background(), db, "u9", domain.ScopeCreditPack, "k9", "", 1, 0); err != nil {
		t.Fatalf("expected independent scope, got %v", err)
	}
}

func TestCreateIdempotency_Error_NoTable(t *testing.T) {
	db := newTestDB(t) // intentionally NOT migrating
	_, err := CreateIdempotency(context.Background(), db, "uX", domain.ScopeSpend, "kX", "", 1, time.Minute)
	if err == nil {
		t.Fatalf("expected error when table is missing")
	}
	if err == ErrDuplicate {
		t.Fatalf("expected non-duplicate error, got ErrDuplicate")
	}
}

func TestDeleteExpiredIdempotency_KeepsPermanent(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", domain.ScopeSpend, "short", "", 1, time.Millisecond); err != nil {
		t.Fatalf("seed short: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "u1", domain.ScopeCreditPack, "forever", "", 10, 0); err != nil {
		t.Fatalf("seed permanent: %v", err)
	}

	n, err := DeleteExpiredIdempotency(ctx, db, time.Now().UTC().Add(time.Minute))
	if err != nil {
		t.Fatalf("DeleteExpiredIdempotency: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 purged row, got %d", n)
	}
	var left int64
	db.Model(&domain.Idempotency{}).Count(&left)
	if left != 1 {
		t.Fatalf("expected permanent record to remain, got %d rows", left)
	}
}

func TestHasCreditPack(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "u1", domain.ScopeCreditPack, "txn-1", "looks_5_intro", 5, 0); err != nil {
		t.Fatalf("seed pack: %v", err)
	}
	// Spend keys never count as purchases, whatever their ref.
	if _, err := CreateIdempotency(ctx, db, "u2", domain.ScopeSpend, "k1", "looks_5_intro", 1, time.Hour); err != nil {
		t.Fatalf("seed spend: %v", err)
	}

	cases := []struct {
		user     string
		products []string
		want     bool
	}{
		{"u1", []string{"looks_5_intro"}, true},
		{"u1", []string{"looks_30", "looks_5_intro"}, true},
		{"u1", []string{"looks_30"}, false},
		{"u1", nil, false},
		{"u2", []string{"looks_5_intro"}, false},
	}
	for _, tc := range cases {
		got, err := HasCreditPack(ctx, db, tc.user, tc.products)
		if err != nil {
			t.Fatalf("HasCreditPack(%s, %v): %v", tc.user, tc.products, err)
		}
		if got != tc.want {
			t.Fatalf("HasCreditPack(%s, %v) = %v; want %v", tc.user, tc.products, got, tc.want)
		}
	}
}
