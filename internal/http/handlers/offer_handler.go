// Offer HTTP handlers.
//
//   - POST /offers/decide        (read-only decision)
//   - POST /offers/impressions   (record a presented offer)
//   - GET  /offers/impressions   (recent impressions, paginated)
//
// Deciding and recording are separate calls: the client may decide and then
// not show the offer (for example the screen was dismissed), and only shown
// offers count towards caps and cooldowns.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/looks-entitlements/internal/domain"
	"github.com/tbourn/looks-entitlements/internal/utils"
)

//
// DTOs
//

// DecideRequest is the JSON payload for an offer decision.
type DecideRequest struct {
	// Event is the in-app trigger.
	Event   domain.Trigger         `json:"event" binding:"required" example:"out_of_looks"`
	Context domain.DecisionContext `json:"context"`
}

// RecordImpressionRequest is the JSON payload for recording an impression.
type RecordImpressionRequest struct {
	OfferKey string `json:"offer_key" binding:"required" example:"entry"`
	Surface  string `json:"surface"   binding:"required" example:"sheet"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListImpressionsResponse wraps a page of impressions.
type ListImpressionsResponse struct {
	Impressions []domain.OfferImpression `json:"impressions"`
	Pagination  Pagination               `json:"pagination"`
}

// pageQuery reads page and limit (alias page_size) with defaults and an
// upper bound.
func pageQuery(c *gin.Context) utils.Page {
	const (
		defaultPageSize = 20
		maxPageSize     = 100
	)
	raw := c.Query("limit")
	if raw == "" {
		raw = c.Query("page_size")
	}
	return utils.ParsePage(c.Query("page"), raw, defaultPageSize, maxPageSize)
}

//
// Handlers
//

// DecideOffer godoc
// @ID          decideOffer
// @Summary     Decide whether to show an offer
// @Description Evaluates caps, cooldowns and the routing table for the trigger. Read-only: record an impression only when the offer is actually shown. The copy language falls back to Accept-Language when context.locale is empty.
// @Tags        Offers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Accept-Language  header  string                  false  "Copy language fallback"  example(es-MX)
// @Param       body             body    handlers.DecideRequest  true   "Decision request"
//
// @Success     200  {object}  domain.Decision
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request or unknown event"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Storage failure"
// @Router      /offers/decide [post]
func (h *Handlers) DecideOffer(c *gin.Context) {
	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	dc := req.Context
	if strings.TrimSpace(dc.Locale) == "" {
		dc.Locale = c.GetHeader("Accept-Language")
	}

	d, err := h.offerSvc.Decide(c.Request.Context(), userID(c), req.Event, dc)
	if err != nil {
		failFor(c, err)
		return
	}
	ok(c, http.StatusOK, d)
}

// RecordImpression godoc
// @ID          recordImpression
// @Summary     Record a shown offer
// @Description Appends an impression. Impressions feed the daily and weekly caps and the cooldowns.
// @Tags        Offers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.RecordImpressionRequest  true  "Impression"
//
// @Success     201  {object}  domain.OfferImpression
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request or unknown offer/surface"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Storage failure"
// @Router      /offers/impressions [post]
func (h *Handlers) RecordImpression(c *gin.Context) {
	var req RecordImpressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "offer_key and surface are required")
		return
	}
	imp, err := h.offerSvc.RecordImpression(c.Request.Context(), userID(c),
		strings.TrimSpace(req.OfferKey), strings.TrimSpace(req.Surface))
	if err != nil {
		failFor(c, err)
		return
	}
	ok(c, http.StatusCreated, imp)
}

// ListImpressions godoc
// @ID          listImpressions
// @Summary     List recent impressions
// @Description Returns the caller's impressions, newest first.
// @Tags        Offers
// @Produce     json
// @Security    BearerAuth
//
// @Param       page   query  int  false  "Page number"     minimum(1) default(1)
// @Param       limit  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListImpressionsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Storage failure"
// @Router      /offers/impressions [get]
func (h *Handlers) ListImpressions(c *gin.Context) {
	p := pageQuery(c)

	items, total, err := h.offerSvc.ListImpressions(c.Request.Context(), userID(c), p.Number, p.Size)
	if err != nil {
		failFor(c, err)
		return
	}
	if items == nil {
		items = []domain.OfferImpression{}
	}

	ok(c, http.StatusOK, ListImpressionsResponse{
		Impressions: items,
		Pagination: Pagination{
			Page:       p.Number,
			PageSize:   p.Size,
			Total:      total,
			TotalPages: p.TotalPages(total),
			HasNext:    p.HasNext(total),
		},
	})
}
