// Package handlers adapts the entitlement, credit, offer and billing
// services to HTTP.
//
// Every failure leaves through fail with an ErrorResponse envelope whose code
// is stable for clients; service sentinels are translated in one table
// (serviceErrors) so handlers never pick status codes for domain errors.
//
//	HTTP/1.1 402 Payment Required
//	{"request_id":"123e4567-e89b-12d3-a456-426614174000","code":"insufficient_credits","message":"not enough looks"}
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/looks-entitlements/internal/http/middleware"
	"github.com/tbourn/looks-entitlements/internal/services"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable code, see errors.go
	Code string `json:"code" example:"insufficient_credits"`
	// Safe to show to users
	Message string `json:"message" example:"not enough looks"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// serviceErrors is checked in order with errors.Is.
var serviceErrors = []errorMapping{
	{services.ErrUnauthenticated, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required"},
	{services.ErrInsufficientCredits, http.StatusPaymentRequired, ErrCodeInsufficientCredits, "not enough looks"},
	{services.ErrInvalidAmount, http.StatusBadRequest, ErrCodeInvalidAmount, "amount must be a positive integer"},
	{services.ErrInvalidTrigger, http.StatusBadRequest, ErrCodeInvalidTrigger, "unknown event"},
	{services.ErrInvalidOffer, http.StatusBadRequest, ErrCodeInvalidOffer, "unknown offer_key or surface"},
	{services.ErrEntitlementNotFound, http.StatusNotFound, ErrCodeNotFound, "entitlement not found"},
}

// fail aborts with the envelope. 5xx responses are logged on the request
// logger together with any errors attached via c.Error.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		ev := middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code)
		if last := c.Errors.Last(); last != nil {
			ev = ev.AnErr("cause", last.Err)
		}
		ev.Msg(msg)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get(middleware.HeaderRequestID),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router answer NoRoute and NoMethod with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// failFor answers a service error. Anything outside serviceErrors is a
// storage or internal failure; its text stays in the logs.
func failFor(c *gin.Context, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.target) {
			fail(c, m.status, m.code, m.message)
			return
		}
	}
	_ = c.Error(err)
	fail(c, http.StatusInternalServerError, ErrCodeStorageFailed, "storage failure")
}
