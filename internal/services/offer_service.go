// Package services – OfferService
//
// OfferService decides whether and which offer to present at an in-app
// moment. Decide is read-only: it never records impressions, so a decision
// can be previewed without being counted. Callers that actually present the
// offer record it with RecordImpression.
//
// Rules, first match wins: top-tier subscribers are never upsold; daily and
// weekly caps; no upsell right after a failed generation; the routing table;
// the same-offer cooldown; the global cooldown.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/looks-entitlements/internal/domain"
	"github.com/tbourn/looks-entitlements/internal/observability"
	"github.com/tbourn/looks-entitlements/internal/offers"
	"github.com/tbourn/looks-entitlements/internal/repo"
	"github.com/tbourn/looks-entitlements/internal/utils"
)

// ProductCatalog lists the store products behind an offer.
type ProductCatalog interface {
	Products(offerKey string) []string
}

// OfferService evaluates offer decisions and records impressions.
type OfferService struct {
	DB      *gorm.DB
	Catalog ProductCatalog
	Policy  offers.Policy

	// Now is overridable in tests.
	Now func() time.Time
}

// Decide returns the offer decision for userID at trigger.
func (s *OfferService) Decide(ctx context.Context, userID string, trigger domain.Trigger, dc domain.DecisionContext) (domain.Decision, error) {
	tr := otel.Tracer("services/OfferService")
	ctx, span := tr.Start(ctx, "Decide",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("trigger", string(trigger)),
		),
	)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return domain.Decision{}, ErrUnauthenticated
	}
	if !trigger.Valid() {
		return domain.Decision{}, ErrInvalidTrigger
	}

	d, err := s.decide(ctx, userID, trigger, dc)
	if err != nil {
		return domain.Decision{}, err
	}
	observability.OfferDecisions.WithLabelValues(d.OfferKey, d.Reason).Inc()
	span.SetAttributes(attribute.Bool("should_show", d.ShouldShow), attribute.String("reason", d.Reason))
	return d, nil
}

func (s *OfferService) decide(ctx context.Context, userID string, trigger domain.Trigger, dc domain.DecisionContext) (domain.Decision, error) {
	now := s.now()

	ent, err := repo.GetEntitlement(ctx, s.DB, userID)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		ent = &domain.Entitlement{UserID: userID}
	case err != nil:
		return domain.Decision{}, err
	}

	// 1. Nothing to sell to top-tier subscribers.
	if ent.SubscriptionActive {
		return suppressed(domain.ReasonAlreadyMaximal), nil
	}

	imps, err := repo.ListImpressionsSince(ctx, s.DB, userID, now.Add(-s.Policy.Window()))
	if err != nil {
		return domain.Decision{}, err
	}
	hist := offers.Summarize(imps, now)

	// 2-3. Frequency caps.
	if hist.Day >= s.Policy.DailyCap {
		return suppressed(domain.ReasonDailyLimit), nil
	}
	if hist.Week >= s.Policy.WeeklyCap {
		return suppressed(domain.ReasonWeeklyLimit), nil
	}

	// 4. Never upsell right after a disappointing outcome.
	if strings.EqualFold(dc.LastGenerationStatus, domain.GenerationStatusFailed) {
		return suppressed(domain.ReasonAfterFailure), nil
	}

	// 5. Routing table.
	segment := dc.Segment
	if !segment.Valid() {
		segment, err = s.deriveSegment(ctx, ent)
		if err != nil {
			return domain.Decision{}, err
		}
	}
	entry, err := repo.HasCreditPack(ctx, s.DB, userID, s.Catalog.Products(domain.OfferEntry))
	if err != nil {
		return domain.Decision{}, err
	}
	cands, reason := offers.Route(trigger, offers.State{
		Segment:        segment,
		Balance:        ent.ConsumableBalance,
		PacksPurchased: ent.PacksPurchased,
		HasEntryAccess: entry,
	})
	if len(cands) == 0 {
		return suppressed(reason), nil
	}

	// 6. Same-offer cooldown on the top candidate.
	chosen := cands[0]
	if offers.CooldownGated(chosen.Offer) && offers.InCooldown(hist.LastByOffer[chosen.Offer], now, s.Policy.SameOfferCooldown) {
		return suppressed(domain.ReasonOfferCooldown), nil
	}

	// 7. Global cooldown.
	if offers.InCooldown(hist.LastAny, now, s.Policy.GlobalCooldown) {
		return suppressed(domain.ReasonGlobalCooldown), nil
	}

	return domain.Decision{
		ShouldShow:  true,
		OfferKey:    chosen.Offer,
		Surface:     offers.SurfaceFor(trigger),
		Products:    s.Catalog.Products(chosen.Offer),
		CopyVariant: offers.CopyVariant(chosen, dc.Locale),
		Segment:     segment,
		Reason:      chosen.Reason,
	}, nil
}

// RecordImpression appends an impression for an offer the caller presented.
func (s *OfferService) RecordImpression(ctx context.Context, userID, offerKey, surface string) (*domain.OfferImpression, error) {
	tr := otel.Tracer("services/OfferService")
	ctx, span := tr.Start(ctx, "RecordImpression",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("offer.key", offerKey),
			attribute.String("surface", surface),
		),
	)
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	switch offerKey {
	case domain.OfferEntry, domain.OfferPack, domain.OfferSubscription:
	default:
		return nil, ErrInvalidOffer
	}
	switch surface {
	case domain.SurfaceSheet, domain.SurfaceFullscreen, domain.SurfaceInline:
	default:
		return nil, ErrInvalidOffer
	}
	return repo.CreateImpression(ctx, s.DB, userID, offerKey, surface, s.now())
}

// ListImpressions returns the user's most recent impressions, newest first.
func (s *OfferService) ListImpressions(ctx context.Context, userID string, page, pageSize int) ([]domain.OfferImpression, int64, error) {
	tr := otel.Tracer("services/OfferService")
	ctx, span := tr.Start(ctx, "ListImpressions",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	p := utils.Page{Number: page, Size: pageSize}.Bounded(20, 0)
	return repo.ListImpressions(ctx, s.DB, userID, p.Size, p.Offset())
}

func (s *OfferService) deriveSegment(ctx context.Context, ent *domain.Entitlement) (domain.Segment, error) {
	if ent.PacksPurchased > 0 {
		return offers.DeriveSegment(ent.PacksPurchased, 0), nil
	}
	n, err := repo.CountSuccessfulGenerations(ctx, s.DB, ent.UserID)
	if err != nil {
		return "", err
	}
	return offers.DeriveSegment(0, n), nil
}

func (s *OfferService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func suppressed(reason string) domain.Decision {
	return domain.Decision{ShouldShow: false, Reason: reason}
}
