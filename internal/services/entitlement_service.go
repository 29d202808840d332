// Package services – EntitlementService
//
// EntitlementService owns the "ensure-entitlement" reconciliation that runs
// after every sign-in. When the user already has an entitlement row it is
// returned as-is with no external calls. Otherwise the row is rebuilt from
// the billing platform: subscription state from the named grant (or any
// unexpired subscription), credits from recognised pack purchases minus an
// estimate of what was already consumed.
//
// Billing platform failures never fail the caller; the user gets a
// zero-balance, non-subscribed row instead.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/looks-entitlements/internal/billing"
	"github.com/tbourn/looks-entitlements/internal/domain"
	"github.com/tbourn/looks-entitlements/internal/observability"
	"github.com/tbourn/looks-entitlements/internal/repo"
)

// Snapshot is the client-facing view of an entitlement.
type Snapshot struct {
	SubscriptionActive  bool               `json:"subscription_active"`
	ConsumableBalance   int                `json:"consumable_balance"`
	QualityTier         domain.QualityTier `json:"quality_tier"`
	WatermarkSuppressed bool               `json:"watermark_suppressed"`
	PacksPurchased      int                `json:"packs_purchased"`
	// Recovered is the balance restored from the billing platform by this call.
	Recovered int  `json:"recovered"`
	Degraded  bool `json:"degraded,omitempty"`
}

// SnapshotOf converts a stored entitlement to its client view.
func SnapshotOf(e *domain.Entitlement) Snapshot {
	return Snapshot{
		SubscriptionActive:  e.SubscriptionActive,
		ConsumableBalance:   e.ConsumableBalance,
		QualityTier:         domain.TierFor(e.SubscriptionActive),
		WatermarkSuppressed: e.SubscriptionActive,
		PacksPurchased:      e.PacksPurchased,
	}
}

// EntitlementService runs the reconciliation job and serves entitlement reads.
type EntitlementService struct {
	DB      *gorm.DB
	Billing SubscriberLookup
	Catalog billing.CreditTable
	Ledger  *LedgerService

	// EntitlementID names the billing grant that means "subscribed".
	EntitlementID string

	// Now is overridable in tests.
	Now func() time.Time
}

// recovery is what the billing platform says the user is owed.
type recovery struct {
	active      bool
	purchases   []billing.Purchase
	generations int64
	degraded    bool
}

// Ensure guarantees an entitlement row exists for userID and returns it.
// Calling it repeatedly is safe: once the row exists, Ensure has no side
// effects.
func (s *EntitlementService) Ensure(ctx context.Context, userID string) (Snapshot, error) {
	tr := otel.Tracer("services/EntitlementService")
	ctx, span := tr.Start(ctx, "Ensure", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return Snapshot{}, ErrUnauthenticated
	}

	e, err := repo.GetEntitlement(ctx, s.DB, userID)
	if err == nil {
		observability.Reconciliations.WithLabelValues("existing").Inc()
		return SnapshotOf(e), nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return Snapshot{}, err
	}

	rec, err := s.fetch(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}

	recovered, err := s.apply(ctx, userID, rec)
	if err != nil {
		return Snapshot{}, err
	}

	if s.Ledger != nil {
		if _, err := s.Ledger.Verify(ctx, userID); err != nil {
			return Snapshot{}, err
		}
	}
	e, err = repo.GetEntitlement(ctx, s.DB, userID)
	if err != nil {
		return Snapshot{}, err
	}

	snap := SnapshotOf(e)
	snap.Recovered = recovered
	snap.Degraded = rec.degraded
	span.SetAttributes(attribute.Int("recovered", recovered), attribute.Bool("degraded", rec.degraded))
	return snap, nil
}

// Get returns the stored entitlement without reconciling.
func (s *EntitlementService) Get(ctx context.Context, userID string) (*domain.Entitlement, error) {
	tr := otel.Tracer("services/EntitlementService")
	ctx, span := tr.Start(ctx, "Get", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	e, err := repo.GetEntitlement(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrEntitlementNotFound
	}
	return e, err
}

// Version returns the mirrored balance and the newest write time, used for
// ETag generation.
func (s *EntitlementService) Version(ctx context.Context, userID string) (int, *time.Time, error) {
	return repo.EntitlementVersion(ctx, s.DB, userID)
}

// fetch queries the billing platform and the generation history in parallel.
// Only storage errors are returned; upstream failures degrade to zero state.
func (s *EntitlementService) fetch(ctx context.Context, userID string) (recovery, error) {
	var (
		rec     recovery
		sub     *billing.Subscriber
		billErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if s.Billing == nil {
			billErr = ErrUpstreamUnavailable
			return nil
		}
		sub, billErr = s.Billing.GetSubscriber(gctx, userID)
		return nil
	})
	g.Go(func() error {
		n, err := repo.CountSuccessfulGenerations(gctx, s.DB, userID)
		rec.generations = n
		return err
	})
	if err := g.Wait(); err != nil {
		return recovery{}, err
	}

	log := zerolog.Ctx(ctx)
	switch {
	case billErr == nil:
		rec.active = sub.Active(s.EntitlementID, s.now())
		rec.purchases = sub.CreditPurchases(s.Catalog)
	case errors.Is(billErr, billing.ErrSubscriberNotFound):
		// A user who never bought anything has no subscriber record.
	default:
		rec.degraded = true
		observability.Reconciliations.WithLabelValues("degraded").Inc()
		log.Warn().Err(billErr).Str("user_id", userID).
			Msg("billing lookup failed; creating zero-state entitlement")
	}
	return rec, nil
}

// apply writes the recovered state. A brand-new row is inserted with the
// recovered balance; when a concurrent caller created the row first, the
// balance is added only if that row has not been reconciled yet, so the
// recovery lands exactly once.
func (s *EntitlementService) apply(ctx context.Context, userID string, rec recovery) (int, error) {
	now := s.now()
	recovered := 0
	outcome := "created"

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Purchase keys are shared with the webhook path: a pack the webhook
		// already credited is not recovered a second time.
		var fresh []billing.Purchase
		for _, p := range rec.purchases {
			key := billing.PurchaseKey(userID, p.ProductID, p.TransactionID, p.PurchasedAt)
			ok, err := recordKey(ctx, tx, userID, domain.ScopeCreditPack, key, p.ProductID, p.Credits, 0)
			if err != nil {
				return err
			}
			if ok {
				fresh = append(fresh, p)
			}
		}
		recovered = recoverableCredits(rec.purchases, fresh, rec.generations)

		row := &domain.Entitlement{
			UserID:             userID,
			SubscriptionActive: rec.active,
			ConsumableBalance:  recovered,
			PacksPurchased:     len(fresh),
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		if !rec.degraded {
			row.ReconciledAt = &now
		}
		err := tx.Transaction(func(sp *gorm.DB) error {
			return repo.InsertEntitlement(ctx, sp, row)
		})
		switch {
		case err == nil:
			return repo.AddLedgerCredits(ctx, tx, userID, recovered)
		case !errors.Is(err, repo.ErrDuplicate):
			return err
		}

		outcome = "raced"
		if rec.degraded {
			recovered = 0
			return nil
		}
		applied, err := repo.RecoverEntitlementCredits(ctx, tx, userID, recovered, len(fresh), now)
		if err != nil {
			return err
		}
		if !applied {
			recovered = 0
			return nil
		}
		return repo.AddLedgerCredits(ctx, tx, userID, recovered)
	})
	if err != nil {
		return 0, err
	}

	if recovered > 0 {
		outcome = "recovered"
		observability.CreditsGranted.WithLabelValues("reconcile").Add(float64(recovered))
	}
	observability.Reconciliations.WithLabelValues(outcome).Inc()
	zerolog.Ctx(ctx).Info().
		Str("user_id", userID).
		Str("outcome", outcome).
		Bool("subscription_active", rec.active).
		Int("recovered", recovered).
		Int64("generations", rec.generations).
		Msg("entitlement reconciled")
	return recovered, nil
}

func (s *EntitlementService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// recoverableCredits estimates the unredeemed balance. Consumption is
// approximated as min(generations, purchased); credits from purchases that
// were already applied elsewhere are then deducted, clamping at zero.
func recoverableCredits(all, fresh []billing.Purchase, generations int64) int {
	purchased := billing.TotalCredits(all)
	consumed := purchased
	if generations < int64(purchased) {
		consumed = int(generations)
	}
	balance := purchased - consumed
	balance -= purchased - billing.TotalCredits(fresh)
	if balance < 0 {
		return 0
	}
	return balance
}
