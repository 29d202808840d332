// Package handlers exposes the entitlement, credit, offer and billing webhook
// endpoints. Handlers are transport-thin: they bind and validate input, call
// the application services, and translate results into HTTP responses.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/looks-entitlements/internal/domain"
	"github.com/tbourn/looks-entitlements/internal/http/middleware"
	"github.com/tbourn/looks-entitlements/internal/services"
)

//
// Service contracts (context-aware)
//

// EntitlementService reconciles and reads entitlement rows.
type EntitlementService interface {
	// Ensure guarantees a row exists, recovering state from billing if needed.
	Ensure(ctx context.Context, userID string) (services.Snapshot, error)
	// Get returns the stored row or services.ErrEntitlementNotFound.
	Get(ctx context.Context, userID string) (*domain.Entitlement, error)
	// Version returns the mirrored balance and newest write time for ETags.
	Version(ctx context.Context, userID string) (int, *time.Time, error)
}

// LedgerService spends consumable credits.
type LedgerService interface {
	SpendCredit(ctx context.Context, userID string, amount int, idempotencyKey string) (services.SpendResult, error)
}

// OfferService decides offers and records impressions.
type OfferService interface {
	Decide(ctx context.Context, userID string, trigger domain.Trigger, dc domain.DecisionContext) (domain.Decision, error)
	RecordImpression(ctx context.Context, userID, offerKey, surface string) (*domain.OfferImpression, error)
	ListImpressions(ctx context.Context, userID string, page, pageSize int) ([]domain.OfferImpression, int64, error)
}

// BillingEventProcessor applies one decoded billing webhook event.
type BillingEventProcessor interface {
	Process(ctx context.Context, ev domain.BillingEvent) (services.Outcome, error)
}

// Handlers groups the HTTP endpoints. It depends on service interfaces so
// tests can substitute stubs.
type Handlers struct {
	entSvc   EntitlementService
	ledger   LedgerService
	offerSvc OfferService
	events   BillingEventProcessor
}

// New constructs Handlers bound to the given services.
func New(ent EntitlementService, ledger LedgerService, offers OfferService, events BillingEventProcessor) *Handlers {
	return &Handlers{entSvc: ent, ledger: ledger, offerSvc: offers, events: events}
}

// userID returns the caller resolved by the authentication middleware.
func userID(c *gin.Context) string {
	return middleware.UserID(c)
}
