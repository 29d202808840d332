// Package services defines the business logic for entitlements, the credit
// ledger, billing webhooks and offer decisions. This file centralizes the
// service-level error values so that they can be consistently returned by
// service methods and checked by callers with errors.Is.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrUnauthenticated indicates a missing or invalid caller identity.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInsufficientCredits is returned when a spend exceeds the balance.
	// It is a business outcome, not a system failure.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrIdentityUnresolved indicates a billing subscriber that cannot yet be
	// linked to a durable user. The event is journaled and the purchase is
	// recovered at the user's next sign-in.
	ErrIdentityUnresolved = errors.New("identity unresolved")

	// ErrUpstreamUnavailable indicates the billing platform lookup failed or
	// timed out.
	ErrUpstreamUnavailable = errors.New("billing platform unavailable")

	// ErrStorageInconsistency indicates the two credit ledger locations
	// disagree after an operation that should have kept them equal.
	ErrStorageInconsistency = errors.New("credit ledger inconsistency")

	// ErrInvalidAmount is returned for non-positive credit amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidTrigger is returned for an unknown offer trigger event.
	ErrInvalidTrigger = errors.New("unknown trigger event")

	// ErrInvalidOffer is returned when recording an impression with an
	// unknown offer key or surface.
	ErrInvalidOffer = errors.New("unknown offer or surface")

	// ErrEntitlementNotFound indicates the user has no entitlement row yet.
	ErrEntitlementNotFound = errors.New("entitlement not found")
)
