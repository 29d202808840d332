// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are stable, lowercase snake_case strings carried in every error
// envelope next to the HTTP status. Clients branch on the code, not on the
// message. Generic codes mirror HTTP status semantics; domain codes name
// business outcomes the status alone cannot convey.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "insufficient_credits",
//	  "message": "not enough looks"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeInsufficientCredits = "insufficient_credits"
	ErrCodeInvalidAmount       = "invalid_amount"
	ErrCodeInvalidTrigger      = "invalid_trigger"
	ErrCodeInvalidOffer        = "invalid_offer"
	ErrCodeBadWebhook          = "bad_webhook"
	ErrCodeStorageFailed       = "storage_failed"
)
