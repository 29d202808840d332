// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, authentication, idempotency, and rate
// limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/looks-entitlements/docs"
	"github.com/tbourn/looks-entitlements/internal/catalog"
	"github.com/tbourn/looks-entitlements/internal/config"
	"github.com/tbourn/looks-entitlements/internal/domain"
	"github.com/tbourn/looks-entitlements/internal/http/handlers"
	"github.com/tbourn/looks-entitlements/internal/http/middleware"
	"github.com/tbourn/looks-entitlements/internal/offers"
	"github.com/tbourn/looks-entitlements/internal/repo"
	"github.com/tbourn/looks-entitlements/internal/services"
)

// Deps are the collaborators RegisterRoutes builds services from.
type Deps struct {
	DB *gorm.DB
	// Billing is the subscriber lookup. Nil disables recovery on ensure and
	// the live alias lookup in the webhook resolver.
	Billing services.SubscriberLookup
	// Catalog defaults to catalog.Default() when nil.
	Catalog *catalog.Catalog
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), compression, CORS
// and security headers, health and metrics endpoints, and then mounts the
// authenticated API under cfg.APIBasePath and the billing webhook under
// /webhooks.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Gzip, CORS and Security headers
//
// and on the API group only:
//  8. Authenticate (resolves the caller, enriches the logger)
//  9. Idempotency validator (before rate limiter to allow bypass on replay)
//  10. Rate limiter (per user/IP, bypass on replay)
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	cat := deps.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Response compression; metrics are served above so scrapes stay plain
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Accept-Language", "Authorization", "If-None-Match", middleware.HeaderUserID, middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotencyReplayed}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// API docs
	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/billing/catalog
	ledger := &services.LedgerService{DB: deps.DB, SpendKeyTTL: cfg.IdempotencyTTL}
	entSvc := &services.EntitlementService{
		DB:            deps.DB,
		Billing:       deps.Billing,
		Catalog:       cat,
		Ledger:        ledger,
		EntitlementID: cfg.Billing.EntitlementID,
	}
	offerSvc := &services.OfferService{
		DB:      deps.DB,
		Catalog: cat,
		Policy: offers.Policy{
			DailyCap:          cfg.Offers.DailyCap,
			WeeklyCap:         cfg.Offers.WeeklyCap,
			SameOfferCooldown: cfg.Offers.SameOfferCooldown,
			GlobalCooldown:    cfg.Offers.GlobalCooldown,
		},
	}
	events := &services.BillingEventProcessor{
		DB:       deps.DB,
		Identity: &services.IdentityResolver{Billing: deps.Billing},
		Ledger:   ledger,
		Catalog:  cat,
	}
	h := handlers.New(entSvc, ledger, offerSvc, events)

	// Billing webhook: shared secret, no per-user limiter
	hooks := r.Group("/webhooks", middleware.WebhookAuth(cfg.Auth.WebhookSecret))
	hooks.POST("/billing", h.BillingWebhook)

	// Public API
	rl := middleware.NewRateLimiter(cfg.Rate.RPS, cfg.Rate.Burst, middleware.KeyByUserOrIP())
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(
		middleware.Authenticate(middleware.AuthOptions{
			JWTSecret:       cfg.Auth.JWTSecret,
			AllowUserHeader: cfg.Auth.AllowUserHeader,
		}),
		middleware.IdempotencyValidator(
			middleware.IdempotencyOptions{MaxLen: 200},
			func(ctx context.Context, userID, key string, now time.Time) (bool, error) {
				rec, err := repo.GetIdempotency(ctx, deps.DB, userID, domain.ScopeSpend, key, now)
				if err != nil || rec == nil {
					return false, nil
				}
				return true, nil
			},
		),
		rl.Handler(),
	)
	{
		// Entitlement
		api.POST("/entitlement/ensure", h.EnsureEntitlement)
		api.GET("/entitlement", h.GetEntitlement)

		// Credits
		api.POST("/credits/spend", h.SpendCredits)

		// Offers
		api.POST("/offers/decide", h.DecideOffer)
		api.POST("/offers/impressions", h.RecordImpression)
		api.GET("/offers/impressions", h.ListImpressions)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
