// Package services – LedgerService
//
// LedgerService keeps the consumable balance in its two storage locations
// (entitlements.consumable_balance and credits.balance) equal. Every add and
// spend writes both sides inside one transaction; a spend is a conditional
// single-row decrement, so concurrent spenders can never overdraw.
//
// Observability: public methods are OpenTelemetry-instrumented and spends are
// counted by outcome.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/looks-entitlements/internal/domain"
	"github.com/tbourn/looks-entitlements/internal/observability"
	"github.com/tbourn/looks-entitlements/internal/repo"
)

// SpendResult is the outcome of a successful spend.
type SpendResult struct {
	Balance  int  `json:"balance"`
	Replayed bool `json:"-"`
}

// LedgerService coordinates writes to both credit ledger locations.
type LedgerService struct {
	DB *gorm.DB

	// SpendKeyTTL bounds how long a spend Idempotency-Key is remembered.
	SpendKeyTTL time.Duration
}

// AddCredits adds amount to both ledger locations, creating rows as needed.
func (s *LedgerService) AddCredits(ctx context.Context, userID string, amount int) error {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "AddCredits",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.Int("amount", amount)),
	)
	defer span.End()

	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.addBoth(ctx, tx, userID, amount, 0)
	})
}

// ApplyCreditPack grants a purchased credit pack exactly once per purchase
// key. It reports false when the key was already applied, either by an
// earlier delivery or by reconciliation.
func (s *LedgerService) ApplyCreditPack(ctx context.Context, userID, purchaseKey, productID string, amount int) (bool, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "ApplyCreditPack",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("product.id", productID),
			attribute.Int("amount", amount),
		),
	)
	defer span.End()

	if amount <= 0 {
		return false, ErrInvalidAmount
	}
	applied := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The key commits with the credit add or not at all.
		fresh, err := recordKey(ctx, tx, userID, domain.ScopeCreditPack, purchaseKey, productID, amount, 0)
		if err != nil || !fresh {
			return err
		}
		if err := s.addBoth(ctx, tx, userID, amount, 1); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	span.SetAttributes(attribute.Bool("applied", applied))
	return applied, nil
}

// SpendCredit consumes amount credits. A non-empty idempotencyKey makes the
// call safe to retry: a replay returns the current balance without spending.
// It returns ErrInsufficientCredits when the balance does not cover amount.
func (s *LedgerService) SpendCredit(ctx context.Context, userID string, amount int, idempotencyKey string) (SpendResult, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "SpendCredit",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.Int("amount", amount)),
	)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return SpendResult{}, ErrUnauthenticated
	}
	if amount <= 0 {
		return SpendResult{}, ErrInvalidAmount
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)

	if idempotencyKey != "" {
		if _, err := repo.GetIdempotency(ctx, s.DB, userID, domain.ScopeSpend, idempotencyKey, time.Now().UTC()); err == nil {
			return s.replay(ctx, userID)
		} else if !errors.Is(err, repo.ErrNotFound) {
			observability.CreditSpends.WithLabelValues("error").Inc()
			return SpendResult{}, err
		}
	}

	var (
		res      SpendResult
		replayed bool
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if idempotencyKey != "" {
			fresh, err := recordKey(ctx, tx, userID, domain.ScopeSpend, idempotencyKey, "", amount, s.SpendKeyTTL)
			if err != nil {
				return err
			}
			if !fresh {
				replayed = true
				return nil
			}
		}

		ok, err := repo.DecrementEntitlementCredits(ctx, tx, userID, amount)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInsufficientCredits
		}
		mirrored, err := repo.DecrementLedgerCredits(ctx, tx, userID, amount)
		if err != nil {
			return err
		}
		bal, _, err := s.syncMirror(ctx, tx, userID, !mirrored)
		if err != nil {
			return err
		}
		res.Balance = bal
		return nil
	})
	switch {
	case errors.Is(err, ErrInsufficientCredits):
		observability.CreditSpends.WithLabelValues("insufficient").Inc()
		return SpendResult{}, ErrInsufficientCredits
	case err != nil:
		observability.CreditSpends.WithLabelValues("error").Inc()
		return SpendResult{}, err
	case replayed:
		return s.replay(ctx, userID)
	}
	observability.CreditSpends.WithLabelValues("spent").Inc()
	return res, nil
}

// Balance returns the authoritative consumable balance (0 without a row).
func (s *LedgerService) Balance(ctx context.Context, userID string) (int, error) {
	e, err := repo.GetEntitlement(ctx, s.DB, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return e.ConsumableBalance, nil
}

// Verify compares both ledger locations for userID and repairs the mirror
// from the entitlement row when they differ. It reports whether a repair
// happened.
func (s *LedgerService) Verify(ctx context.Context, userID string) (bool, error) {
	tr := otel.Tracer("services/LedgerService")
	ctx, span := tr.Start(ctx, "Verify", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if _, err := repo.GetEntitlement(ctx, s.DB, userID); errors.Is(err, repo.ErrNotFound) {
		return false, ErrEntitlementNotFound
	} else if err != nil {
		return false, err
	}

	repaired := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		_, repaired, err = s.syncMirror(ctx, tx, userID, false)
		return err
	})
	return repaired, err
}

// VerifyAll walks every entitlement row in pages and repairs drifted mirrors.
// It returns the users that were repaired.
func (s *LedgerService) VerifyAll(ctx context.Context, pageSize int) ([]string, error) {
	var (
		repaired []string
		cursor   string
	)
	for {
		pairs, err := repo.ListLedgerPairs(ctx, s.DB, cursor, pageSize)
		if err != nil {
			return repaired, err
		}
		if len(pairs) == 0 {
			return repaired, nil
		}
		for _, p := range pairs {
			cursor = p.UserID
			if p.LedgerBalance != nil && *p.LedgerBalance == p.ConsumableBalance {
				continue
			}
			fixed, err := s.Verify(ctx, p.UserID)
			if err != nil {
				return repaired, fmt.Errorf("verify %s: %w", p.UserID, err)
			}
			if fixed {
				repaired = append(repaired, p.UserID)
			}
		}
	}
}

func (s *LedgerService) addBoth(ctx context.Context, tx *gorm.DB, userID string, amount, packs int) error {
	if err := repo.AddEntitlementCredits(ctx, tx, userID, amount, packs); err != nil {
		return err
	}
	if err := repo.AddLedgerCredits(ctx, tx, userID, amount); err != nil {
		return err
	}
	_, _, err := s.syncMirror(ctx, tx, userID, false)
	return err
}

func (s *LedgerService) replay(ctx context.Context, userID string) (SpendResult, error) {
	bal, err := s.Balance(ctx, userID)
	if err != nil {
		return SpendResult{}, err
	}
	observability.CreditSpends.WithLabelValues("replayed").Inc()
	return SpendResult{Balance: bal, Replayed: true}, nil
}

// syncMirror reads both balances inside tx and, when they disagree, reports a
// storage inconsistency and overwrites the mirror with the entitlement
// balance. known forces the repair when the caller already saw a mismatch.
// It returns the authoritative balance and whether the mirror was repaired.
func (s *LedgerService) syncMirror(ctx context.Context, tx *gorm.DB, userID string, known bool) (int, bool, error) {
	e, err := repo.GetEntitlement(ctx, tx, userID)
	if err != nil {
		return 0, false, err
	}
	mirror := -1
	c, err := repo.GetCredits(ctx, tx, userID)
	switch {
	case err == nil:
		mirror = c.Balance
	case !errors.Is(err, repo.ErrNotFound):
		return 0, false, err
	}
	if !known && mirror == e.ConsumableBalance {
		return e.ConsumableBalance, false, nil
	}

	observability.LedgerInconsistencies.Inc()
	zerolog.Ctx(ctx).WithLevel(zerolog.FatalLevel).
		Err(ErrStorageInconsistency).
		Str("user_id", userID).
		Int("entitlement_balance", e.ConsumableBalance).
		Int("ledger_balance", mirror).
		Msg("credit ledger diverged; overwriting mirror from entitlement")

	if err := repo.SetLedgerBalance(ctx, tx, userID, e.ConsumableBalance); err != nil {
		return 0, false, fmt.Errorf("%w: repair failed: %v", ErrStorageInconsistency, err)
	}
	return e.ConsumableBalance, true, nil
}

// recordKey inserts an idempotency record inside a savepoint so a unique
// violation does not abort the enclosing transaction. It reports false when
// the key already exists.
func recordKey(ctx context.Context, tx *gorm.DB, userID, scope, key, ref string, amount int, ttl time.Duration) (bool, error) {
	err := tx.Transaction(func(sp *gorm.DB) error {
		_, err := repo.CreateIdempotency(ctx, sp, userID, scope, key, ref, amount, ttl)
		return err
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
