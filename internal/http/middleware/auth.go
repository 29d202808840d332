// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file authenticates callers. Client routes carry an HS256 bearer token
// whose "sub" claim is the durable user identifier; the billing webhook
// carries a shared secret in the Authorization header instead.
//
// The authenticated user ID is stored in the Gin context under "userID",
// which the rate limiter, the idempotency validator and handlers read via
// UserID.
package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// ctxKeyUserID is the Gin context key holding the authenticated user.
	ctxKeyUserID = "userID"
	// HeaderUserID lets trusted callers name the user directly (dev only).
	HeaderUserID = "X-User-ID"
	// HeaderWebhookSecret carries the billing platform's shared secret.
	HeaderWebhookSecret = "X-Webhook-Secret"
)

// AuthOptions configures Authenticate.
type AuthOptions struct {
	// JWTSecret verifies HS256 bearer tokens. Empty disables bearer auth.
	JWTSecret string
	// AllowUserHeader accepts X-User-ID when no bearer token is sent.
	AllowUserHeader bool
	// Leeway tolerates clock skew on exp/nbf. Defaults to 30s.
	Leeway time.Duration
}

// UserID returns the authenticated user stored by Authenticate, or "".
func UserID(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyUserID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Authenticate resolves the calling user and aborts with 401 when it cannot.
// On success the request-scoped logger is enriched with the user ID.
func Authenticate(opts AuthOptions) gin.HandlerFunc {
	leeway := opts.Leeway
	if leeway <= 0 {
		leeway = 30 * time.Second
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(leeway),
	)
	secret := []byte(opts.JWTSecret)

	return func(c *gin.Context) {
		var uid string
		if tok, ok := bearerToken(c.GetHeader("Authorization")); ok && len(secret) > 0 {
			sub, err := subjectOf(parser, tok, secret)
			if err != nil {
				LoggerFrom(c).Debug().Err(err).Msg("bearer token rejected")
				unauthorized(c, "invalid bearer token")
				return
			}
			uid = sub
		} else if opts.AllowUserHeader {
			uid = strings.TrimSpace(c.GetHeader(HeaderUserID))
		}
		if uid == "" {
			unauthorized(c, "authentication required")
			return
		}

		c.Set(ctxKeyUserID, uid)
		lg := LoggerFrom(c).With().Str("user_id", uid).Logger()
		attachLogger(c, &lg)
		c.Next()
	}
}

// WebhookAuth checks the shared secret the billing platform sends, either in
// X-Webhook-Secret or in the Authorization header with or without a "Bearer "
// prefix. An empty secret disables the check; config.Validate only allows
// that outside release mode.
func WebhookAuth(secret string) gin.HandlerFunc {
	want := []byte(secret)
	return func(c *gin.Context) {
		if len(want) == 0 {
			c.Next()
			return
		}
		got := strings.TrimSpace(c.GetHeader(HeaderWebhookSecret))
		if got == "" {
			got = strings.TrimSpace(c.GetHeader("Authorization"))
			if tok, ok := bearerToken(got); ok {
				got = tok
			}
		}
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			unauthorized(c, "webhook secret mismatch")
			return
		}
		c.Next()
	}
}

func subjectOf(p *jwt.Parser, raw string, secret []byte) (string, error) {
	claims := jwt.MapClaims{}
	_, err := p.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(sub) == "" {
		return "", errors.New("token has no subject")
	}
	return sub, nil
}

func bearerToken(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	tok := strings.TrimSpace(h[len(prefix):])
	return tok, tok != ""
}

func unauthorized(c *gin.Context, msg string) {
	abortError(c, http.StatusUnauthorized, "unauthorized", msg)
}
