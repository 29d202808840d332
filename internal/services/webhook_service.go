// Package services – BillingEventProcessor
//
// BillingEventProcessor applies billing platform webhook events to the
// entitlement store and the credit ledger. Deliveries are at-least-once and
// may arrive out of order:
//
//   - subscription events are conditional upserts keyed by user and guarded
//     by the event time, so replays and stale events change nothing. Being
//     idempotent, a failed upsert is retried locally a few times;
//   - credit packs are deduplicated by a purchase key recorded in the same
//     transaction as the credit add;
//   - events whose subscriber cannot be linked to a durable user are
//     journaled and acknowledged, never retried.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/looks-entitlements/internal/billing"
	"github.com/tbourn/looks-entitlements/internal/domain"
	"github.com/tbourn/looks-entitlements/internal/observability"
	"github.com/tbourn/looks-entitlements/internal/repo"
)

// Outcome is the acknowledged result of processing one billing event.
type Outcome string

const (
	OutcomeApplied            Outcome = "applied"
	OutcomeDuplicate          Outcome = "duplicate"
	OutcomeIdentityUnresolved Outcome = "identity_unresolved"
	OutcomeIgnored            Outcome = "ignored"
)

// Resolver maps a billing subscriber to a durable user.
type Resolver interface {
	Resolve(ctx context.Context, subscriberID string, aliases []string) (string, error)
}

// upsertAttempts bounds local retries of the subscription upsert. Credit
// adds are never retried here; redelivery and the purchase key cover them.
const upsertAttempts = 3

// BillingEventProcessor consumes billing events one at a time.
type BillingEventProcessor struct {
	DB       *gorm.DB
	Identity Resolver
	Ledger   *LedgerService
	Catalog  billing.CreditTable

	// RetryBackOff paces subscription upsert retries. Nil uses a short
	// exponential backoff.
	RetryBackOff func() backoff.BackOff
}

// Process applies ev. Only genuine storage failures are returned as errors;
// every other case is a soft outcome so the sender does not retry.
func (p *BillingEventProcessor) Process(ctx context.Context, ev domain.BillingEvent) (Outcome, error) {
	tr := otel.Tracer("services/BillingEventProcessor")
	ctx, span := tr.Start(ctx, "Process",
		trace.WithAttributes(
			attribute.String("event.id", ev.ID),
			attribute.String("event.type", string(ev.Type)),
			attribute.String("product.id", ev.ProductID),
		),
	)
	defer span.End()

	out, err := p.process(ctx, ev)
	label := string(out)
	if err != nil {
		label = "error"
		span.RecordError(err)
	}
	observability.WebhookEvents.WithLabelValues(metricType(ev.Type), label).Inc()
	span.SetAttributes(attribute.String("outcome", label))
	return out, err
}

func (p *BillingEventProcessor) process(ctx context.Context, ev domain.BillingEvent) (Outcome, error) {
	log := zerolog.Ctx(ctx).With().
		Str("event_id", ev.ID).
		Str("event_type", string(ev.Type)).
		Logger()

	effect := ev.Type.Effect()
	credits := 0
	switch effect {
	case domain.EffectNone:
		log.Info().Msg("unhandled billing event type")
		return OutcomeIgnored, nil
	case domain.EffectCreditPack:
		n, ok := p.Catalog.Credits(ev.ProductID)
		if !ok {
			log.Info().Str("product_id", ev.ProductID).Msg("non-renewing purchase of unknown product")
			return OutcomeIgnored, nil
		}
		credits = n
	}

	userID, err := p.Identity.Resolve(ctx, ev.SubscriberID, ev.Aliases)
	if err != nil {
		if !errors.Is(err, ErrIdentityUnresolved) {
			return "", err
		}
		if _, jerr := repo.CreateUnresolvedEvent(ctx, p.DB, ev); jerr != nil {
			log.Error().Err(jerr).Msg("journal unresolved billing event")
		}
		log.Info().Str("subscriber_id", ev.SubscriberID).Msg("billing identity unresolved; deferring to reconciliation")
		return OutcomeIdentityUnresolved, nil
	}
	log = log.With().Str("user_id", userID).Logger()

	switch effect {
	case domain.EffectActivate, domain.EffectDeactivate:
		active := effect == domain.EffectActivate
		applied, err := p.upsertSubscription(ctx, log, userID, active, ev.OccurredAt)
		if err != nil {
			return "", err
		}
		if !applied {
			log.Info().Time("occurred_at", ev.OccurredAt).Msg("stale subscription event ignored")
			return OutcomeIgnored, nil
		}
		log.Info().Bool("subscription_active", active).Msg("subscription state applied")
		return OutcomeApplied, nil

	default:
		key := billing.PurchaseKey(userID, ev.ProductID, ev.TransactionID, ev.PurchasedAt)
		applied, err := p.Ledger.ApplyCreditPack(ctx, userID, key, ev.ProductID, credits)
		if err != nil {
			return "", err
		}
		if !applied {
			log.Info().Str("product_id", ev.ProductID).Msg("duplicate credit pack ignored")
			return OutcomeDuplicate, nil
		}
		observability.CreditsGranted.WithLabelValues("webhook").Add(float64(credits))
		log.Info().Str("product_id", ev.ProductID).Int("credits", credits).Msg("credit pack applied")
		return OutcomeApplied, nil
	}
}

func (p *BillingEventProcessor) upsertSubscription(ctx context.Context, log zerolog.Logger, userID string, active bool, at time.Time) (bool, error) {
	newBackOff := p.RetryBackOff
	if newBackOff == nil {
		newBackOff = defaultUpsertBackOff
	}
	return backoff.Retry(ctx,
		func() (bool, error) {
			return repo.UpsertSubscription(ctx, p.DB, userID, active, at)
		},
		backoff.WithBackOff(newBackOff()),
		backoff.WithMaxTries(upsertAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Dur("retry_in", next).Msg("subscription upsert failed; retrying")
		}),
	)
}

func defaultUpsertBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	return b
}

// metricType folds unknown event types into one label value.
func metricType(t domain.BillingEventType) string {
	if t.Effect() == domain.EffectNone {
		return "other"
	}
	return string(t)
}
