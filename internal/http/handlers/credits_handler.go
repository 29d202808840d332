// Credit ledger HTTP handlers.
//
//   - POST /credits/spend   (consume looks, Idempotency-Key aware)
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/looks-entitlements/internal/http/middleware"
)

// SpendRequest is the JSON payload for spending credits. An empty body
// spends one look.
type SpendRequest struct {
	// Amount of looks to consume. Defaults to 1.
	Amount *int `json:"amount" example:"1"`
}

// SpendResponse carries the balance after the spend.
type SpendResponse struct {
	Balance int `json:"balance" example:"4"`
}

// SpendCredits godoc
// @ID          spendCredits
// @Summary     Spend looks
// @Description Atomically consumes looks from both ledger locations. Concurrent spends never overdraw. With an Idempotency-Key, a retried request returns the current balance with `Idempotency-Replayed: true` and spends nothing.
// @Tags        Credits
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string                 false  "Retry-safe key"  example(3f1e9a7c-spend-1)
// @Param       body             body    handlers.SpendRequest  false  "Spend payload"
//
// @Success     200  {object}  handlers.SpendResponse
// @Header      200  {string}  Idempotency-Replayed  "true when served from an earlier request"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     402  {object}  handlers.ErrorResponse  "Insufficient credits"
// @Failure     500  {object}  handlers.ErrorResponse  "Storage failure"
// @Router      /credits/spend [post]
func (h *Handlers) SpendCredits(c *gin.Context) {
	var req SpendRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	amount := 1
	if req.Amount != nil {
		amount = *req.Amount
	}

	key, _ := middleware.GetIdempotencyKey(c)
	res, err := h.ledger.SpendCredit(c.Request.Context(), userID(c), amount, key)
	if err != nil {
		failFor(c, err)
		return
	}
	if res.Replayed {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
	}
	ok(c, http.StatusOK, SpendResponse{Balance: res.Balance})
}
