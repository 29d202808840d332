// Package middleware holds the gin middleware in front of the looks API:
// correlation IDs, redacted access logs, panic recovery, caller
// authentication, webhook secrets, Idempotency-Key validation, per-user rate
// limits, security headers and request metrics.
//
// The request logger lives in two places. Handlers read it with LoggerFrom;
// services read it with zerolog.Ctx from the request context, so a service
// log line carries request_id and user_id without importing gin.
//
// Order on the engine: RequestID, RedactingLogger, Recovery, then the rest.
package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// HeaderRequestID carries the correlation ID in both directions.
const HeaderRequestID = "X-Request-ID"

const (
	ctxKeyRequestID = "requestID"
	ctxKeyLogger    = "logger"

	// maxQueryLogLength caps the raw query written to access logs.
	maxQueryLogLength = 2048
)

// RequestID keeps a caller-supplied X-Request-ID or mints a UUIDv4 and echoes
// it on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(HeaderRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, rid)
		c.Writer.Header().Set(HeaderRequestID, rid)
		c.Next()
	}
}

// RequestIDFrom returns the correlation ID set by RequestID, or "".
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(ctxKeyRequestID)
}

// abortError stops the chain with the API error envelope.
func abortError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": c.Writer.Header().Get(HeaderRequestID),
		"code":       code,
		"message":    msg,
	})
}

// Recovery turns a panic into a 500 envelope and logs the stack. A panic after
// the body started only sets the status.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("request_id", RequestIDFrom(c)).
				Str("route", c.FullPath()).
				Msg("panic recovered")

			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			abortError(c, http.StatusInternalServerError, "internal_error", "internal server error")
		}()
		c.Next()
	}
}

// LoggerFrom returns the request logger, falling back to the global one.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if lg, ok := c.Value(ctxKeyLogger).(*zerolog.Logger); ok && lg != nil {
		return lg
	}
	l := log.With().Logger()
	return &l
}

// attachLogger makes lg the request logger for handlers and services.
func attachLogger(c *gin.Context, lg *zerolog.Logger) {
	c.Set(ctxKeyLogger, lg)
	if c.Request != nil {
		c.Request = c.Request.WithContext(lg.WithContext(c.Request.Context()))
	}
}

// truncate caps s at max bytes; max <= 0 means no cap.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
