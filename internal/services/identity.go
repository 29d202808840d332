package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/looks-entitlements/internal/billing"
)

// SubscriberLookup fetches a subscriber record from the billing platform.
// *billing.Client satisfies it.
type SubscriberLookup interface {
	GetSubscriber(ctx context.Context, id string) (*billing.Subscriber, error)
}

// IdentityResolver maps billing subscriber identifiers, which may be
// anonymous, to durable user identifiers.
type IdentityResolver struct {
	Billing SubscriberLookup // optional; nil disables the live lookup
}

// Resolve returns the durable user identifier for subscriberID. It tries, in
// order: the identifier itself, the event's aliases, and the aliases held by
// the billing platform. It returns ErrIdentityUnresolved when none match.
func (r *IdentityResolver) Resolve(ctx context.Context, subscriberID string, aliases []string) (string, error) {
	tr := otel.Tracer("services/IdentityResolver")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(attribute.Int("aliases.count", len(aliases))),
	)
	defer span.End()

	if id, ok := billing.FirstDurable(subscriberID); ok {
		return id, nil
	}
	if id, ok := billing.FirstDurable(aliases...); ok {
		return id, nil
	}
	if r.Billing == nil || subscriberID == "" {
		return "", ErrIdentityUnresolved
	}

	sub, err := r.Billing.GetSubscriber(ctx, subscriberID)
	if err != nil {
		if !errors.Is(err, billing.ErrSubscriberNotFound) {
			zerolog.Ctx(ctx).Warn().Err(err).Str("subscriber_id", subscriberID).Msg("alias lookup failed")
		}
		return "", fmt.Errorf("%w: %v", ErrIdentityUnresolved, err)
	}
	if id, ok := sub.DurableAlias(); ok {
		span.SetAttributes(attribute.Bool("resolved.remote", true))
		return id, nil
	}
	return "", ErrIdentityUnresolved
}
