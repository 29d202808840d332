package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/looks-entitlements/internal/domain"
	"github.com/tbourn/looks-entitlements/internal/offers"
	"github.com/tbourn/looks-entitlements/internal/repo"
)

func newOfferService(t *testing.T) *OfferService {
	t.Helper()
	return &OfferService{
		DB:      newTestDB(t),
		Catalog: testCatalog(),
		Policy:  offers.DefaultPolicy(),
		Now:     func() time.Time { return testNow },
	}
}

func seedImpression(t *testing.T, s *OfferService, userID, offer string, ago time.Duration) {
	t.Helper()
	_, err := repo.CreateImpression(context.Background(), s.DB, userID, offer, domain.SurfaceSheet, testNow.Add(-ago))
	require.NoError(t, err)
}

func seedEntitlement(t *testing.T, s *OfferService, e domain.Entitlement) {
	t.Helper()
	require.NoError(t, repo.InsertEntitlement(context.Background(), s.DB, &e))
}

var allTriggers = []domain.Trigger{
	domain.TriggerTryGenerate,
	domain.TriggerOutOfLooks,
	domain.TriggerSaveResult,
	domain.TriggerShareResult,
	domain.TriggerSecondPackAttempt,
}

var allSegments = []domain.Segment{
	domain.SegmentTourist,
	domain.SegmentSampler,
	domain.SegmentExplorer,
	domain.SegmentBuyer,
	domain.SegmentPower,
}

func TestDecide_SubscriberIsAlreadyMaximal(t *testing.T) {
	s := newOfferService(t)
	seedEntitlement(t, s, domain.Entitlement{UserID: userA, SubscriptionActive: true})

	d, err := s.Decide(context.Background(), userA, domain.TriggerOutOfLooks, domain.DecisionContext{})
	require.NoError(t, err)
	assert.False(t, d.ShouldShow)
	assert.Equal(t, domain.ReasonAlreadyMaximal, d.Reason)
	assert.Empty(t, d.OfferKey)
}

func TestDecide_TouristTryGenerateGetsEntryOffer(t *testing.T) {
	s := newOfferService(t)

	d, err := s.Decide(context.Background(), userA, domain.TriggerTryGenerate,
		domain.DecisionContext{Segment: domain.SegmentTourist, Locale: "en-US"})
	require.NoError(t, err)
	assert.True(t, d.ShouldShow)
	assert.Equal(t, domain.OfferEntry, d.OfferKey)
	assert.Equal(t, domain.SurfaceSheet, d.Surface)
	assert.Equal(t, []string{"looks_5_intro"}, d.Products)
	assert.Equal(t, "entry.trust.en", d.CopyVariant)
	assert.Equal(t, domain.ReasonNoPurchases, d.Reason)
}

func TestDecide_DailyLimitWinsForEveryTriggerAndSegment(t *testing.T) {
	s := newOfferService(t)
	seedImpression(t, s, userA, domain.OfferPack, 10*time.Hour)
	seedImpression(t, s, userA, domain.OfferEntry, 20*time.Hour)

	for _, tr := range allTriggers {
		for _, seg := range allSegments {
			d, err := s.Decide(context.Background(), userA, tr, domain.DecisionContext{Segment: seg})
			require.NoError(t, err)
			assert.False(t, d.ShouldShow, "%s/%s", tr, seg)
			assert.Equal(t, domain.ReasonDailyLimit, d.Reason, "%s/%s", tr, seg)
		}
	}
}

func TestDecide_WeeklyLimit(t *testing.T) {
	s := newOfferService(t)
	for i := 1; i <= 5; i++ {
		seedImpression(t, s, userA, domain.OfferPack, time.Duration(i)*30*time.Hour)
	}
	d, err := s.Decide(context.Background(), userA, domain.TriggerOutOfLooks, domain.DecisionContext{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonWeeklyLimit, d.Reason)
}

func TestDecide_AfterFailureAlwaysSuppresses(t *testing.T) {
	s := newOfferService(t)
	for _, tr := range allTriggers {
		for _, seg := range allSegments {
			d, err := s.Decide(context.Background(), userA, tr,
				domain.DecisionContext{Segment: seg, LastGenerationStatus: "failed"})
			require.NoError(t, err)
			assert.False(t, d.ShouldShow)
			assert.Equal(t, domain.ReasonAfterFailure, d.Reason, "%s/%s", tr, seg)
		}
	}
}

func TestDecide_TryGenerateWithCreditsIsSuppressed(t *testing.T) {
	s := newOfferService(t)
	seedEntitlement(t, s, domain.Entitlement{UserID: userA, ConsumableBalance: 3})

	d, err := s.Decide(context.Background(), userA, domain.TriggerTryGenerate, domain.DecisionContext{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonHasCredits, d.Reason)
}

func TestDecide_RepeatBuyerSteeredToSubscription(t *testing.T) {
	s := newOfferService(t)
	seedEntitlement(t, s, domain.Entitlement{UserID: userA, PacksPurchased: 3})

	d, err := s.Decide(context.Background(), userA, domain.TriggerOutOfLooks, domain.DecisionContext{Locale: "es-MX"})
	require.NoError(t, err)
	assert.True(t, d.ShouldShow)
	assert.Equal(t, domain.OfferSubscription, d.OfferKey)
	assert.Equal(t, domain.SurfaceFullscreen, d.Surface)
	assert.Equal(t, domain.SegmentPower, d.Segment)
	assert.Equal(t, domain.ReasonRepeatBuyer, d.Reason)
	assert.Equal(t, "subscription.savings.es", d.CopyVariant)
}

func TestDecide_SameOfferCooldownSuppressesTopCandidate(t *testing.T) {
	s := newOfferService(t)
	seedEntitlement(t, s, domain.Entitlement{UserID: userA, PacksPurchased: 1})
	// Past the 4h global cooldown but inside the 24h same-offer cooldown.
	seedImpression(t, s, userA, domain.OfferSubscription, 5*time.Hour)

	d, err := s.Decide(context.Background(), userA, domain.TriggerOutOfLooks, domain.DecisionContext{})
	require.NoError(t, err)
	assert.False(t, d.ShouldShow)
	assert.Equal(t, domain.ReasonOfferCooldown, d.Reason)
	assert.Empty(t, d.OfferKey, "a lower-ranked offer must not be shown instead")
}

func TestDecide_SameOfferCooldownExpires(t *testing.T) {
	s := newOfferService(t)
	seedEntitlement(t, s, domain.Entitlement{UserID: userA, PacksPurchased: 1})
	seedImpression(t, s, userA, domain.OfferSubscription, 25*time.Hour)

	d, err := s.Decide(context.Background(), userA, domain.TriggerOutOfLooks, domain.DecisionContext{})
	require.NoError(t, err)
	assert.True(t, d.ShouldShow)
	assert.Equal(t, domain.OfferSubscription, d.OfferKey)
}

func TestDecide_OfferCooldownOnShareResult(t *testing.T) {
	s := newOfferService(t)
	seedEntitlement(t, s, domain.Entitlement{UserID: userA, PacksPurchased: 1})
	seedImpression(t, s, userA, domain.OfferSubscription, 12*time.Hour)

	d, err := s.Decide(context.Background(), userA, domain.TriggerShareResult, domain.DecisionContext{})
	require.NoError(t, err)
	assert.False(t, d.ShouldShow)
	assert.Equal(t, domain.ReasonOfferCooldown, d.Reason)
}

func TestDecide_EntryBuyerIsNotOfferedEntryAgain(t *testing.T) {
	s := newOfferService(t)
	// The pack counter lags the applied entry purchase.
	seedEntitlement(t, s, domain.Entitlement{UserID: userA})
	_, err := repo.CreateIdempotency(context.Background(), s.DB, userA, domain.ScopeCreditPack, "txn-entry", "looks_5_intro", 5, 0)
	require.NoError(t, err)

	d, err := s.Decide(context.Background(), userA, domain.TriggerOutOfLooks, domain.DecisionContext{Segment: domain.SegmentTourist})
	require.NoError(t, err)
	assert.True(t, d.ShouldShow)
	assert.Equal(t, domain.OfferSubscription, d.OfferKey)
	assert.Equal(t, domain.ReasonSingleBuyer, d.Reason)
}

func TestDecide_SecondPackAttemptWithoutHistoryGetsEntry(t *testing.T) {
	s := newOfferService(t)

	d, err := s.Decide(context.Background(), userA, domain.TriggerSecondPackAttempt, domain.DecisionContext{Segment: domain.SegmentBuyer})
	require.NoError(t, err)
	assert.True(t, d.ShouldShow)
	assert.Equal(t, domain.OfferEntry, d.OfferKey)
	assert.Equal(t, domain.ReasonNoPurchases, d.Reason)
}

func TestDecide_GlobalCooldown(t *testing.T) {
	s := newOfferService(t)
	seedImpression(t, s, userA, domain.OfferPack, 2*time.Hour)

	d, err := s.Decide(context.Background(), userA, domain.TriggerOutOfLooks, domain.DecisionContext{})
	require.NoError(t, err)
	assert.False(t, d.ShouldShow)
	assert.Equal(t, domain.ReasonGlobalCooldown, d.Reason)
}

func TestDecide_DerivesSegmentFromHistory(t *testing.T) {
	s := newOfferService(t)
	seedGenerations(t, s.DB, userA, 5)

	d, err := s.Decide(context.Background(), userA, domain.TriggerSaveResult, domain.DecisionContext{})
	require.NoError(t, err)
	assert.Equal(t, domain.SegmentExplorer, d.Segment)
	assert.Equal(t, domain.OfferEntry, d.OfferKey)
	assert.Equal(t, domain.SurfaceInline, d.Surface)
	assert.Equal(t, domain.ReasonEngagedFreeUser, d.Reason)

	d, err = s.Decide(context.Background(), userB, domain.TriggerSaveResult, domain.DecisionContext{})
	require.NoError(t, err)
	assert.False(t, d.ShouldShow)
	assert.Equal(t, domain.ReasonNoCandidate, d.Reason)
}

func TestDecide_IsReadOnly(t *testing.T) {
	s := newOfferService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := s.Decide(ctx, userA, domain.TriggerOutOfLooks, domain.DecisionContext{})
		require.NoError(t, err)
		assert.True(t, d.ShouldShow)
	}
	_, total, err := s.ListImpressions(ctx, userA, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestDecide_Validation(t *testing.T) {
	s := newOfferService(t)
	_, err := s.Decide(context.Background(), userA, "open_app", domain.DecisionContext{})
	assert.ErrorIs(t, err, ErrInvalidTrigger)
	_, err = s.Decide(context.Background(), "", domain.TriggerOutOfLooks, domain.DecisionContext{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRecordImpression_FeedsCaps(t *testing.T) {
	s := newOfferService(t)
	ctx := context.Background()

	_, err := s.RecordImpression(ctx, userA, "banner", domain.SurfaceSheet)
	assert.ErrorIs(t, err, ErrInvalidOffer)
	_, err = s.RecordImpression(ctx, userA, domain.OfferEntry, "popup")
	assert.ErrorIs(t, err, ErrInvalidOffer)

	imp, err := s.RecordImpression(ctx, userA, domain.OfferEntry, domain.SurfaceSheet)
	require.NoError(t, err)
	assert.Equal(t, testNow, imp.CreatedAt)

	d, err := s.Decide(ctx, userA, domain.TriggerOutOfLooks, domain.DecisionContext{})
	require.NoError(t, err)
	assert.Equal(t, domain.ReasonGlobalCooldown, d.Reason)

	items, total, err := s.ListImpressions(ctx, userA, 1, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, domain.OfferEntry, items[0].OfferKey)
}
