// Entitlement HTTP handlers.
//
//   - POST /entitlement/ensure   (reconcile after sign-in)
//   - GET  /entitlement          (read, weak ETag support)
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/looks-entitlements/internal/services"
)

// EnsureEntitlement godoc
// @ID          ensureEntitlement
// @Summary     Ensure the caller's entitlement exists
// @Description Run after every sign-in. Returns the stored entitlement when one exists; otherwise rebuilds it from the billing platform, recovering unredeemed credit packs. Billing outages never fail the call: a zero-balance entitlement is created and `degraded` is set.
// @Tags        Entitlement
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  services.Snapshot
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     500  {object}  handlers.ErrorResponse  "Storage failure"
// @Router      /entitlement/ensure [post]
func (h *Handlers) EnsureEntitlement(c *gin.Context) {
	snap, err := h.entSvc.Ensure(c.Request.Context(), userID(c))
	if err != nil {
		failFor(c, err)
		return
	}
	ok(c, http.StatusOK, snap)
}

// GetEntitlement godoc
// @ID          getEntitlement
// @Summary     Read the caller's entitlement
// @Description Returns the stored entitlement without contacting the billing platform. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Entitlement
// @Produce     json
// @Security    BearerAuth
//
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"  example(W/\"ent:4:1717243200000\")
//
// @Success     200  {object}  services.Snapshot
// @Header      200  {string}  ETag  "Weak ETag for the current state"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthenticated"
// @Failure     404  {object}  handlers.ErrorResponse  "No entitlement yet; call ensure"
// @Failure     500  {object}  handlers.ErrorResponse  "Storage failure"
// @Router      /entitlement [get]
func (h *Handlers) GetEntitlement(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	// ETag pre-check (best effort).
	if bal, ts, err := h.entSvc.Version(ctx, uid); err == nil && ts != nil {
		etag := fmt.Sprintf(`W/"ent:%d:%d"`, bal, ts.UnixMilli())
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	e, err := h.entSvc.Get(ctx, uid)
	if err != nil {
		c.Writer.Header().Del("ETag")
		failFor(c, err)
		return
	}
	ok(c, http.StatusOK, services.SnapshotOf(e))
}
