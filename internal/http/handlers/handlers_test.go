package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/looks-entitlements/internal/domain"
	"github.com/tbourn/looks-entitlements/internal/services"
)

// ---------- stubs ----------

type stubEntSvc struct {
	snap    services.Snapshot
	ent     *domain.Entitlement
	err     error
	balance int
	ts      *time.Time
	getHits int
}

func (s *stubEntSvc) Ensure(ctx context.Context, userID string) (services.Snapshot, error) {
	return s.snap, s.err
}

func (s *stubEntSvc) Get(ctx context.Context, userID string) (*domain.Entitlement, error) {
	s.getHits++
	return s.ent, s.err
}

func (s *stubEntSvc) Version(ctx context.Context, userID string) (int, *time.Time, error) {
	return s.balance, s.ts, nil
}

type stubLedger struct {
	gotUser   string
	gotAmount int
	gotKey    string
	res       services.SpendResult
	err       error
}

func (s *stubLedger) SpendCredit(ctx context.Context, userID string, amount int, key string) (services.SpendResult, error) {
	s.gotUser, s.gotAmount, s.gotKey = userID, amount, key
	return s.res, s.err
}

type stubOffers struct {
	gotTrigger domain.Trigger
	gotCtx     domain.DecisionContext
	decision   domain.Decision
	imp        *domain.OfferImpression
	items      []domain.OfferImpression
	total      int64
	gotPage    int
	gotSize    int
	err        error
}

func (s *stubOffers) Decide(ctx context.Context, userID string, t domain.Trigger, dc domain.DecisionContext) (domain.Decision, error) {
	s.gotTrigger, s.gotCtx = t, dc
	return s.decision, s.err
}

func (s *stubOffers) RecordImpression(ctx context.Context, userID, offerKey, surface string) (*domain.OfferImpression, error) {
	return s.imp, s.err
}

func (s *stubOffers) ListImpressions(ctx context.Context, userID string, page, pageSize int) ([]domain.OfferImpression, int64, error) {
	s.gotPage, s.gotSize = page, pageSize
	return s.items, s.total, s.err
}

type stubEvents struct {
	got domain.BillingEvent
	out services.Outcome
	err error
}

func (s *stubEvents) Process(ctx context.Context, ev domain.BillingEvent) (services.Outcome, error) {
	s.got = ev
	return s.out, s.err
}

// ---------- helpers ----------

// newRouter mounts h with a fixed caller and optional Idempotency-Key.
func newRouter(h *Handlers, idemKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", "u1")
		if idemKey != "" {
			c.Set("idem.key", idemKey)
		}
		c.Next()
	})
	r.POST("/entitlement/ensure", h.EnsureEntitlement)
	r.GET("/entitlement", h.GetEntitlement)
	r.POST("/credits/spend", h.SpendCredits)
	r.POST("/offers/decide", h.DecideOffer)
	r.POST("/offers/impressions", h.RecordImpression)
	r.GET("/offers/impressions", h.ListImpressions)
	r.POST("/webhooks/billing", h.BillingWebhook)
	return r
}

func do(r http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	if body != "" {
		rd = bytes.NewReader([]byte(body))
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, w.Body.String())
	}
	return resp.Code
}

// ---------- entitlement ----------

func TestEnsureEntitlement(t *testing.T) {
	ent := &stubEntSvc{snap: services.Snapshot{ConsumableBalance: 5, Recovered: 5, QualityTier: domain.TierStandard}}
	r := newRouter(New(ent, &stubLedger{}, &stubOffers{}, &stubEvents{}), "")

	w := do(r, http.MethodPost, "/entitlement/ensure", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var got services.Snapshot
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.ConsumableBalance != 5 || got.Recovered != 5 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	ent.err = errors.New("db down")
	w = do(r, http.MethodPost, "/entitlement/ensure", "", nil)
	if w.Code != http.StatusInternalServerError || errCode(t, w) != ErrCodeStorageFailed {
		t.Fatalf("want 500 storage_failed, got %d %s", w.Code, w.Body.String())
	}
}

func TestGetEntitlement_ETagAnd304(t *testing.T) {
	ts := time.UnixMilli(1717243200000).UTC()
	ent := &stubEntSvc{
		ent:     &domain.Entitlement{UserID: "u1", ConsumableBalance: 4, PacksPurchased: 1},
		balance: 4,
		ts:      &ts,
	}
	r := newRouter(New(ent, &stubLedger{}, &stubOffers{}, &stubEvents{}), "")

	w := do(r, http.MethodGet, "/entitlement", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	etag := w.Header().Get("ETag")
	if etag != `W/"ent:4:1717243200000"` {
		t.Fatalf("etag=%q", etag)
	}
	var got services.Snapshot
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.ConsumableBalance != 4 || got.QualityTier != domain.TierStandard || got.WatermarkSuppressed {
		t.Fatalf("unexpected snapshot: %+v", got)
	}

	hits := ent.getHits
	w = do(r, http.MethodGet, "/entitlement", "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("want 304, got %d", w.Code)
	}
	if ent.getHits != hits {
		t.Fatalf("304 path should not load the row")
	}
}

func TestGetEntitlement_NotFound(t *testing.T) {
	ent := &stubEntSvc{err: services.ErrEntitlementNotFound}
	r := newRouter(New(ent, &stubLedger{}, &stubOffers{}, &stubEvents{}), "")

	w := do(r, http.MethodGet, "/entitlement", "", nil)
	if w.Code != http.StatusNotFound || errCode(t, w) != ErrCodeNotFound {
		t.Fatalf("want 404 not_found, got %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("ETag") != "" {
		t.Fatalf("no ETag expected on error")
	}
}

// ---------- credits ----------

func TestSpendCredits_DefaultsToOne(t *testing.T) {
	led := &stubLedger{res: services.SpendResult{Balance: 4}}
	r := newRouter(New(&stubEntSvc{}, led, &stubOffers{}, &stubEvents{}), "")

	w := do(r, http.MethodPost, "/credits/spend", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if led.gotAmount != 1 || led.gotUser != "u1" || led.gotKey != "" {
		t.Fatalf("unexpected call: %+v", led)
	}
	var got SpendResponse
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Balance != 4 {
		t.Fatalf("balance=%d", got.Balance)
	}
	if w.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("fresh spend must not be marked replayed")
	}
}

func TestSpendCredits_ExplicitAmountAndReplay(t *testing.T) {
	led := &stubLedger{res: services.SpendResult{Balance: 2, Replayed: true}}
	r := newRouter(New(&stubEntSvc{}, led, &stubOffers{}, &stubEvents{}), "spend-1")

	w := do(r, http.MethodPost, "/credits/spend", `{"amount":3}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if led.gotAmount != 3 || led.gotKey != "spend-1" {
		t.Fatalf("unexpected call: %+v", led)
	}
	if w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("replayed spend must set Idempotency-Replayed")
	}
}

func TestSpendCredits_Errors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{"bad json", `{"amount":`, nil, http.StatusBadRequest, ErrCodeBadRequest},
		{"insufficient", `{"amount":1}`, services.ErrInsufficientCredits, http.StatusPaymentRequired, ErrCodeInsufficientCredits},
		{"invalid amount", `{"amount":0}`, services.ErrInvalidAmount, http.StatusBadRequest, ErrCodeInvalidAmount},
		{"unauthenticated", ``, services.ErrUnauthenticated, http.StatusUnauthorized, ErrCodeUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(New(&stubEntSvc{}, &stubLedger{err: tc.err}, &stubOffers{}, &stubEvents{}), "")
			w := do(r, http.MethodPost, "/credits/spend", tc.body, nil)
			if w.Code != tc.status || errCode(t, w) != tc.code {
				t.Fatalf("want %d %s, got %d %s", tc.status, tc.code, w.Code, w.Body.String())
			}
		})
	}
}

// ---------- offers ----------

func TestDecideOffer_LocaleFallsBackToAcceptLanguage(t *testing.T) {
	off := &stubOffers{decision: domain.Decision{ShouldShow: true, OfferKey: domain.OfferEntry, Surface: domain.SurfaceSheet}}
	r := newRouter(New(&stubEntSvc{}, &stubLedger{}, off, &stubEvents{}), "")

	w := do(r, http.MethodPost, "/offers/decide", `{"event":"try_generate"}`, map[string]string{"Accept-Language": "es-MX"})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if off.gotTrigger != domain.TriggerTryGenerate || off.gotCtx.Locale != "es-MX" {
		t.Fatalf("unexpected call: %+v", off)
	}

	// An explicit locale wins over the header.
	_ = do(r, http.MethodPost, "/offers/decide", `{"event":"try_generate","context":{"locale":"en"}}`, map[string]string{"Accept-Language": "es-MX"})
	if off.gotCtx.Locale != "en" {
		t.Fatalf("locale=%q", off.gotCtx.Locale)
	}
}

func TestDecideOffer_Errors(t *testing.T) {
	r := newRouter(New(&stubEntSvc{}, &stubLedger{}, &stubOffers{err: services.ErrInvalidTrigger}, &stubEvents{}), "")

	if w := do(r, http.MethodPost, "/offers/decide", `{}`, nil); w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeBadRequest {
		t.Fatalf("missing event: %d %s", w.Code, w.Body.String())
	}
	if w := do(r, http.MethodPost, "/offers/decide", `{"event":"nope"}`, nil); w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeInvalidTrigger {
		t.Fatalf("unknown event: %d %s", w.Code, w.Body.String())
	}
}

func TestRecordImpression(t *testing.T) {
	off := &stubOffers{imp: &domain.OfferImpression{ID: "i1", UserID: "u1", OfferKey: "entry", Surface: "sheet"}}
	r := newRouter(New(&stubEntSvc{}, &stubLedger{}, off, &stubEvents{}), "")

	w := do(r, http.MethodPost, "/offers/impressions", `{"offer_key":"entry","surface":"sheet"}`, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}

	if w := do(r, http.MethodPost, "/offers/impressions", `{"offer_key":"entry"}`, nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing surface: %d", w.Code)
	}

	off.err = services.ErrInvalidOffer
	w = do(r, http.MethodPost, "/offers/impressions", `{"offer_key":"bogus","surface":"sheet"}`, nil)
	if w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeInvalidOffer {
		t.Fatalf("want invalid_offer, got %d %s", w.Code, w.Body.String())
	}
}

func TestListImpressions_Pagination(t *testing.T) {
	off := &stubOffers{
		items: []domain.OfferImpression{{ID: "a"}, {ID: "b"}},
		total: 5,
	}
	r := newRouter(New(&stubEntSvc{}, &stubLedger{}, off, &stubEvents{}), "")

	w := do(r, http.MethodGet, "/offers/impressions?page=2&limit=2", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var got ListImpressionsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if len(got.Impressions) != 2 || got.Pagination.TotalPages != 3 || !got.Pagination.HasNext {
		t.Fatalf("unexpected page: %+v", got.Pagination)
	}
	if off.gotPage != 2 || off.gotSize != 2 {
		t.Fatalf("page=%d size=%d", off.gotPage, off.gotSize)
	}

	// Oversized limits are clamped and empty pages serialize as [].
	off.items, off.total = nil, 0
	w = do(r, http.MethodGet, "/offers/impressions?page_size=1000&page=-3", "", nil)
	if off.gotPage != 1 || off.gotSize != 100 {
		t.Fatalf("page=%d size=%d", off.gotPage, off.gotSize)
	}
	if !strings.Contains(w.Body.String(), `"impressions":[]`) {
		t.Fatalf("want empty array, got %s", w.Body.String())
	}
}

// ---------- webhook ----------

func TestBillingWebhook(t *testing.T) {
	ev := &stubEvents{out: services.OutcomeApplied}
	r := newRouter(New(&stubEntSvc{}, &stubLedger{}, &stubOffers{}, ev), "")

	body := `{"api_version":"1.0","event":{"id":"evt1","type":"non_renewing_purchase","app_user_id":"u1","product_id":"looks_5","transaction_id":"t1","purchased_at_ms":1717243200000}}`
	w := do(r, http.MethodPost, "/webhooks/billing", body, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"outcome":"applied"`) {
		t.Fatalf("body=%s", w.Body.String())
	}
	if ev.got.Type != domain.BillingEventType("NON_RENEWING_PURCHASE") || ev.got.SubscriberID != "u1" {
		t.Fatalf("decoded event: %+v", ev.got)
	}

	if w := do(r, http.MethodPost, "/webhooks/billing", `not json`, nil); w.Code != http.StatusBadRequest || errCode(t, w) != ErrCodeBadWebhook {
		t.Fatalf("malformed: %d %s", w.Code, w.Body.String())
	}

	ev.err = errors.New("disk full")
	if w := do(r, http.MethodPost, "/webhooks/billing", body, nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("storage failure should be retried by the sender, got %d", w.Code)
	}
}
