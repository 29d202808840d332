// Billing webhook HTTP handler.
//
//   - POST /webhooks/billing   (billing platform event delivery)
//
// The platform retries any non-2xx response, so only storage failures are
// reported as errors. Unknown event types, unresolved identities and
// duplicate deliveries are acknowledged with 200 and an outcome.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/looks-entitlements/internal/billing"
	"github.com/tbourn/looks-entitlements/internal/services"
)

// WebhookResponse acknowledges a processed event.
type WebhookResponse struct {
	Outcome services.Outcome `json:"outcome" example:"applied"`
}

// BillingWebhook godoc
// @ID          billingWebhook
// @Summary     Receive a billing platform event
// @Description Applies subscription and credit pack events. Deliveries are at-least-once and may be out of order; duplicates and stale events are acknowledged without changing state.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
// @Security    WebhookSecret
//
// @Param       body  body  billing.WebhookPayload  true  "Event payload"
//
// @Success     200  {object}  handlers.WebhookResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed event"
// @Failure     401  {object}  handlers.ErrorResponse  "Bad webhook secret"
// @Failure     500  {object}  handlers.ErrorResponse  "Storage failure, the sender retries"
// @Router      /webhooks/billing [post]
func (h *Handlers) BillingWebhook(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadWebhook, "unreadable body")
		return
	}
	ev, err := billing.DecodeWebhook(raw)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadWebhook, "malformed billing event")
		return
	}

	out, err := h.events.Process(c.Request.Context(), ev)
	if err != nil {
		_ = c.Error(err)
		fail(c, http.StatusInternalServerError, ErrCodeStorageFailed, "storage failure")
		return
	}
	ok(c, http.StatusOK, WebhookResponse{Outcome: out})
}
