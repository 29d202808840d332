package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tbourn/looks-entitlements/internal/http/middleware"
	"github.com/tbourn/looks-entitlements/internal/services"
)

// envelopeRouter answers GET /x with h behind a fixed request ID and a
// request logger writing to logs.
func envelopeRouter(logs *bytes.Buffer, h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	lg := zerolog.New(logs)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set(middleware.HeaderRequestID, "rid-1")
		c.Set("logger", &lg)
		c.Next()
	})
	r.GET("/x", h)
	return r
}

func getEnvelope(t *testing.T, r http.Handler) (int, ErrorResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v (%s)", err, w.Body.String())
	}
	return w.Code, er
}

func TestFailFor_ServiceSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrUnauthenticated, http.StatusUnauthorized, ErrCodeUnauthorized},
		{services.ErrInsufficientCredits, http.StatusPaymentRequired, ErrCodeInsufficientCredits},
		{fmt.Errorf("spend: %w", services.ErrInvalidAmount), http.StatusBadRequest, ErrCodeInvalidAmount},
		{services.ErrInvalidTrigger, http.StatusBadRequest, ErrCodeInvalidTrigger},
		{services.ErrInvalidOffer, http.StatusBadRequest, ErrCodeInvalidOffer},
		{services.ErrEntitlementNotFound, http.StatusNotFound, ErrCodeNotFound},
	}
	for _, tc := range cases {
		var logs bytes.Buffer
		status, er := getEnvelope(t, envelopeRouter(&logs, func(c *gin.Context) { failFor(c, tc.err) }))
		if status != tc.status || er.Code != tc.code || er.RequestID != "rid-1" {
			t.Fatalf("%v: got %d/%+v want %d/%s", tc.err, status, er, tc.status, tc.code)
		}
		if logs.Len() != 0 {
			t.Fatalf("%v: client errors should not log, got %s", tc.err, logs.String())
		}
	}
}

func TestFailFor_UnknownIsStorageFailure(t *testing.T) {
	var logs bytes.Buffer
	r := envelopeRouter(&logs, func(c *gin.Context) {
		failFor(c, errors.New("database is locked"))
	})

	status, er := getEnvelope(t, r)
	if status != http.StatusInternalServerError || er.Code != ErrCodeStorageFailed {
		t.Fatalf("got %d/%+v", status, er)
	}
	if strings.Contains(er.Message, "locked") {
		t.Fatalf("internal error leaked to client: %q", er.Message)
	}
	out := logs.String()
	if !strings.Contains(out, `"level":"error"`) || !strings.Contains(out, `"cause":"database is locked"`) {
		t.Fatalf("expected error log with cause, got: %s", out)
	}
}

func TestFail_ExportedAndOK(t *testing.T) {
	var logs bytes.Buffer
	status, er := getEnvelope(t, envelopeRouter(&logs, func(c *gin.Context) {
		Fail(c, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	}))
	if status != http.StatusMethodNotAllowed || er.Code != ErrCodeMethodNotAllowed || er.RequestID != "rid-1" {
		t.Fatalf("got %d/%+v", status, er)
	}

	r := envelopeRouter(&logs, func(c *gin.Context) {
		ok(c, http.StatusCreated, SpendResponse{Balance: 3})
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusCreated || strings.TrimSpace(w.Body.String()) != `{"balance":3}` {
		t.Fatalf("ok wrote %d %s", w.Code, w.Body.String())
	}
}
