package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	logx "ridewatch/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func seedProduct(t *testing.T, s *Store, slug, ptype string) {
	t.Helper()
	err := s.UpsertProduct(context.Background(), Product{
		Slug:  slug,
		Type:  ptype,
		Title: slug,
		Score: 8.5,
		Specs: Specs{RangeMi: 40, TopSpeedMph: 30, BatteryWh: 800},

		Published: true,
	})
	if err != nil {
		t.Fatalf("UpsertProduct(%s): %v", slug, err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	v1, err := s.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v1 < 2 {
		t.Fatalf("expected schema version >= 2, got %d", v1)
	}
	if err := s.migrate(ctx); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	v2, _ := s.SchemaVersion(ctx)
	if v2 != v1 {
		t.Fatalf("version changed on re-migrate: %d -> %d", v1, v2)
	}
}

func TestProductRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	seedProduct(t, s, "apollo-city-pro", "escooter")

	p, err := s.Product(ctx, "apollo-city-pro")
	if err != nil {
		t.Fatalf("Product: %v", err)
	}
	if p.Specs.BatteryWh != 800 {
		t.Fatalf("specs lost in round trip: %+v", p.Specs)
	}

	// update keeps created_at, bumps updated_at
	p.Score = 9.0
	if err := s.UpsertProduct(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}
	p2, _ := s.Product(ctx, "apollo-city-pro")
	if p2.Score != 9.0 {
		t.Fatalf("score not updated: %v", p2.Score)
	}

	if _, err := s.Product(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	types, err := s.ProductTypes(ctx)
	if err != nil || len(types) != 1 || types[0] != "escooter" {
		t.Fatalf("ProductTypes = %v, %v", types, err)
	}
}

func TestOffersBulkLoad(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	seedProduct(t, s, "ninebot-max", "escooter")
	seedProduct(t, s, "varla-eagle", "escooter")
	seedProduct(t, s, "onewheel-gt", "eskate")

	offers := []Offer{
		{ProductSlug: "ninebot-max", Retailer: "rev", Country: "us", Currency: "usd", Price: 799, InStock: true},
		{ProductSlug: "ninebot-max", Retailer: "fluid", Country: "US", Currency: "USD", Price: 749},
		{ProductSlug: "varla-eagle", Retailer: "varla", Country: "DE", Currency: "EUR", Price: 1399, InStock: true},
		{ProductSlug: "onewheel-gt", Retailer: "fm", Country: "US", Currency: "USD", Price: 2200, InStock: true},
	}
	for _, o := range offers {
		if err := s.UpsertOffer(ctx, o); err != nil {
			t.Fatalf("UpsertOffer: %v", err)
		}
	}

	// upsert replaces, not duplicates
	if err := s.UpsertOffer(ctx, Offer{ProductSlug: "ninebot-max", Retailer: "rev", Country: "US", Currency: "USD", Price: 779, InStock: true}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	byProduct, err := s.OffersForType(ctx, "escooter")
	if err != nil {
		t.Fatalf("OffersForType: %v", err)
	}
	if len(byProduct) != 2 {
		t.Fatalf("expected 2 products with offers, got %d", len(byProduct))
	}
	if len(byProduct["ninebot-max"]) != 2 {
		t.Fatalf("expected 2 offers for ninebot-max, got %d", len(byProduct["ninebot-max"]))
	}
	for _, o := range byProduct["ninebot-max"] {
		if o.Retailer == "rev" && o.Price != 779 {
			t.Fatalf("upsert did not replace price: %v", o.Price)
		}
		if o.Country != "US" || o.Currency != "USD" {
			t.Fatalf("country/currency not normalized: %+v", o)
		}
	}

	n, err := s.PruneOffers(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("PruneOffers: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 pruned offers, got %d", n)
	}
}

func TestHistoryUpsertIdempotent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	seedProduct(t, s, "ninebot-max", "escooter")

	h := HistorySample{ProductSlug: "ninebot-max", Region: "US", Day: "2026-08-20", Price: 799, Currency: "USD", InStock: true}
	if err := s.UpsertHistory(ctx, h); err != nil {
		t.Fatalf("UpsertHistory: %v", err)
	}
	h.Price = 749
	if err := s.UpsertHistory(ctx, h); err != nil {
		t.Fatalf("re-UpsertHistory: %v", err)
	}

	samples, err := s.HistoryForProduct(ctx, "ninebot-max", "2026-01-01")
	if err != nil {
		t.Fatalf("HistoryForProduct: %v", err)
	}
	if len(samples) != 1 || samples[0].Price != 749 {
		t.Fatalf("expected single updated sample, got %+v", samples)
	}

	n, err := s.PruneHistory(ctx, "2026-09-01")
	if err != nil || n != 1 {
		t.Fatalf("PruneHistory = %d, %v", n, err)
	}
}

func TestTrackerLifecycle(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	seedProduct(t, s, "ninebot-max", "escooter")

	tr := Tracker{
		Token:       "tok-1",
		Email:       "Rider@Example.com",
		ProductSlug: "ninebot-max",
		Region:      "US",
		Kind:        TrackerKindTarget,
		TargetPrice: 700,
	}
	created, err := s.CreateTracker(ctx, tr)
	if err != nil {
		t.Fatalf("CreateTracker: %v", err)
	}
	if created.ID == 0 || created.Cooldown != defaultTrackerCooldown {
		t.Fatalf("unexpected created tracker: %+v", created)
	}

	if _, err := s.CreateTracker(ctx, Tracker{Token: "tok-2", Email: "rider@example.com", ProductSlug: "ninebot-max", Region: "US", Kind: TrackerKindTarget, TargetPrice: 650}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	// unconfirmed trackers are not live
	live, err := s.LiveTrackers(ctx)
	if err != nil || len(live) != 0 {
		t.Fatalf("LiveTrackers before confirm = %v, %v", live, err)
	}

	if err := s.ConfirmTracker(ctx, "tok-1"); err != nil {
		t.Fatalf("ConfirmTracker: %v", err)
	}
	live, _ = s.LiveTrackers(ctx)
	if len(live) != 1 || live[0].Email != "rider@example.com" {
		t.Fatalf("LiveTrackers after confirm = %+v", live)
	}

	at := time.Now()
	if err := s.MarkTrackerNotified(ctx, live[0].ID, at); err != nil {
		t.Fatalf("MarkTrackerNotified: %v", err)
	}
	live, _ = s.LiveTrackers(ctx)
	if live[0].LastNotified.IsZero() {
		t.Fatal("last_notified not stamped")
	}

	if err := s.DeactivateTracker(ctx, "tok-1"); err != nil {
		t.Fatalf("DeactivateTracker: %v", err)
	}
	live, _ = s.LiveTrackers(ctx)
	if len(live) != 0 {
		t.Fatalf("expected no live trackers, got %+v", live)
	}

	if err := s.ConfirmTracker(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTrackerRecreateAfterDeactivate(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	seedProduct(t, s, "ninebot-max", "escooter")

	tr := Tracker{
		Token:       "tok-1",
		Email:       "rider@example.com",
		ProductSlug: "ninebot-max",
		Region:      "US",
		Kind:        TrackerKindTarget,
		TargetPrice: 700,
	}
	if _, err := s.CreateTracker(ctx, tr); err != nil {
		t.Fatalf("CreateTracker: %v", err)
	}
	if err := s.DeactivateTracker(ctx, "tok-1"); err != nil {
		t.Fatalf("DeactivateTracker: %v", err)
	}

	// The dead row must not reserve the (email, product, region, kind) slot.
	tr.Token = "tok-2"
	recreated, err := s.CreateTracker(ctx, tr)
	if err != nil {
		t.Fatalf("re-create after deactivate: %v", err)
	}
	if err := s.ConfirmTracker(ctx, recreated.Token); err != nil {
		t.Fatalf("ConfirmTracker: %v", err)
	}
	live, err := s.LiveTrackers(ctx)
	if err != nil || len(live) != 1 || live[0].Token != "tok-2" {
		t.Fatalf("LiveTrackers = %+v, %v", live, err)
	}

	// Uniqueness still binds while a live row exists.
	tr.Token = "tok-3"
	if _, err := s.CreateTracker(ctx, tr); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestDropTrackerNeedsBaseline(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	seedProduct(t, s, "ninebot-max", "escooter")

	_, err := s.CreateTracker(ctx, Tracker{
		Token: "tok-1", Email: "rider@example.com", ProductSlug: "ninebot-max",
		Region: "US", Kind: TrackerKindDrop, DropPercent: 15,
	})
	if err == nil {
		t.Fatal("drop tracker without baseline accepted")
	}
}

func TestSubscriberResubscribeAfterUnsubscribe(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.CreateSubscriber(ctx, Subscriber{Token: "sub-1", Email: "rider@example.com"}); err != nil {
		t.Fatalf("CreateSubscriber: %v", err)
	}
	if _, err := s.CreateSubscriber(ctx, Subscriber{Token: "sub-dup", Email: "Rider@Example.com"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := s.DeactivateSubscriber(ctx, "sub-1"); err != nil {
		t.Fatalf("DeactivateSubscriber: %v", err)
	}

	resub, err := s.CreateSubscriber(ctx, Subscriber{Token: "sub-2", Email: "rider@example.com"})
	if err != nil {
		t.Fatalf("re-subscribe after unsubscribe: %v", err)
	}
	if err := s.ConfirmSubscriber(ctx, resub.Token); err != nil {
		t.Fatalf("ConfirmSubscriber: %v", err)
	}
	subs, err := s.ActiveSubscribers(ctx)
	if err != nil || len(subs) != 1 || subs[0].Token != "sub-2" {
		t.Fatalf("ActiveSubscribers = %+v, %v", subs, err)
	}
}

func TestOutboxFlow(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	id, err := s.EnqueueEmail(ctx, OutboxEmail{Recipient: "a@b.c", Subject: "price drop", Body: "hi"})
	if err != nil {
		t.Fatalf("EnqueueEmail: %v", err)
	}
	later, err := s.EnqueueEmail(ctx, OutboxEmail{Recipient: "d@e.f", Subject: "later", Body: "hi", NextAttempt: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("EnqueueEmail: %v", err)
	}

	due, err := s.DueEmails(ctx, now.Add(time.Second), 10)
	if err != nil {
		t.Fatalf("DueEmails: %v", err)
	}
	if len(due) != 1 || due[0].ID != id {
		t.Fatalf("expected only first email due, got %+v", due)
	}

	// failed attempt reschedules
	if err := s.MarkEmailFailed(ctx, id, "smtp timeout", now.Add(5*time.Minute), false); err != nil {
		t.Fatalf("MarkEmailFailed: %v", err)
	}
	due, _ = s.DueEmails(ctx, now.Add(time.Second), 10)
	if len(due) != 0 {
		t.Fatalf("rescheduled email should not be due, got %+v", due)
	}
	due, _ = s.DueEmails(ctx, now.Add(6*time.Minute), 10)
	if len(due) != 1 || due[0].Attempts != 1 || due[0].LastError != "smtp timeout" {
		t.Fatalf("unexpected retry state: %+v", due)
	}

	if err := s.MarkEmailSent(ctx, id, now); err != nil {
		t.Fatalf("MarkEmailSent: %v", err)
	}
	// exhausted attempt parks as failed
	if err := s.MarkEmailFailed(ctx, later, "bad recipient", now, true); err != nil {
		t.Fatalf("MarkEmailFailed(exhausted): %v", err)
	}
	due, _ = s.DueEmails(ctx, now.Add(48*time.Hour), 10)
	if len(due) != 0 {
		t.Fatalf("no email should remain pending, got %+v", due)
	}

	n, err := s.PruneOutbox(ctx, now.Add(time.Minute))
	if err != nil || n != 2 {
		t.Fatalf("PruneOutbox = %d, %v", n, err)
	}
}

func TestAnalyticsCounters(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		if err := s.BumpView(ctx, "ninebot-max", now); err != nil {
			t.Fatalf("BumpView: %v", err)
		}
	}
	if err := s.BumpView(ctx, "varla-eagle", now); err != nil {
		t.Fatalf("BumpView: %v", err)
	}
	if err := s.BumpComparison(ctx, []string{"varla-eagle", "ninebot-max"}, now); err != nil {
		t.Fatalf("BumpComparison: %v", err)
	}
	if err := s.BumpComparison(ctx, []string{"ninebot-max", "varla-eagle"}, now); err != nil {
		t.Fatalf("BumpComparison: %v", err)
	}
	// single product comparisons are ignored
	if err := s.BumpComparison(ctx, []string{"ninebot-max"}, now); err != nil {
		t.Fatalf("BumpComparison single: %v", err)
	}

	views, err := s.ViewCounts(ctx, SinceDay(now, 30))
	if err != nil {
		t.Fatalf("ViewCounts: %v", err)
	}
	if len(views) != 2 || views[0].ProductSlug != "ninebot-max" || views[0].Views != 3 {
		t.Fatalf("unexpected view counts: %+v", views)
	}

	comps, err := s.TopComparisons(ctx, SinceDay(now, 30), 5)
	if err != nil {
		t.Fatalf("TopComparisons: %v", err)
	}
	if len(comps) != 1 || comps[0].PairKey != "ninebot-max|varla-eagle" || comps[0].Views != 2 {
		t.Fatalf("unexpected comparisons: %+v", comps)
	}

	n, err := s.PruneAnalytics(ctx, Day(now.AddDate(0, 0, 1)))
	if err != nil || n != 3 {
		t.Fatalf("PruneAnalytics = %d, %v", n, err)
	}
}
