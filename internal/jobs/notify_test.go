package jobs

import (
	"context"
	"testing"
	"time"

	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

func seedTracker(t *testing.T, st *storage.Store, tr storage.Tracker) storage.Tracker {
	t.Helper()
	created, err := st.CreateTracker(context.Background(), tr)
	if err != nil {
		t.Fatalf("create tracker: %v", err)
	}
	if err := st.ConfirmTracker(context.Background(), created.Token); err != nil {
		t.Fatalf("confirm tracker: %v", err)
	}
	return created
}

func seedCacheRow(t *testing.T, st *storage.Store, slug, region string, price float64, inStock bool) {
	t.Helper()
	err := st.UpsertCacheRow(context.Background(), storage.CacheRow{
		ProductSlug: slug,
		Region:      region,
		Price:       price,
		Currency:    "USD",
		Retailer:    "voltshop",
		URL:         "https://shop.example/" + slug,
		InStock:     inStock,
	})
	if err != nil {
		t.Fatalf("seed cache row: %v", err)
	}
}

func TestNotifyTargetTracker(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	seedProduct(t, st, "bolt-500", "escooter")
	seedCacheRow(t, st, "bolt-500", "US", 750, true)
	seedTracker(t, st, storage.Tracker{
		Token: "tok-1", Email: "rider@example.com", ProductSlug: "bolt-500",
		Region: "US", Kind: storage.TrackerKindTarget, TargetPrice: 800,
	})

	j := NewNotify(st, logx.Nop())
	if err := j.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	due, err := st.DueEmails(ctx, time.Now(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 || due[0].Recipient != "rider@example.com" {
		t.Fatalf("due = %+v, want one alert", due)
	}

	// Cooldown: an immediate second run must not enqueue again.
	if err := j.Run(ctx); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	due, err = st.DueEmails(ctx, time.Now(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 {
		t.Fatalf("cooldown ignored, due = %+v", due)
	}
}

func TestNotifyDropTracker(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	seedProduct(t, st, "bolt-500", "escooter")
	seedTracker(t, st, storage.Tracker{
		Token: "tok-2", Email: "rider@example.com", ProductSlug: "bolt-500",
		Region: "US", Kind: storage.TrackerKindDrop, DropPercent: 15, BaselinePrice: 1000,
	})

	j := NewNotify(st, logx.Nop())

	// 900 is only 10% off the baseline: no alert.
	seedCacheRow(t, st, "bolt-500", "US", 900, true)
	if err := j.Run(ctx); err != nil {
		t.Fatal(err)
	}
	due, err := st.DueEmails(ctx, time.Now(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Fatalf("10%% drop should not trigger a 15%% tracker: %+v", due)
	}

	// 850 crosses the 15% threshold.
	seedCacheRow(t, st, "bolt-500", "US", 850, true)
	if err := j.Run(ctx); err != nil {
		t.Fatal(err)
	}
	due, err = st.DueEmails(ctx, time.Now(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 1 {
		t.Fatalf("due = %+v, want one alert", due)
	}
}

func TestNotifySkipsOutOfStock(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	seedProduct(t, st, "bolt-500", "escooter")
	seedCacheRow(t, st, "bolt-500", "US", 500, false)
	seedTracker(t, st, storage.Tracker{
		Token: "tok-3", Email: "rider@example.com", ProductSlug: "bolt-500",
		Region: "US", Kind: storage.TrackerKindTarget, TargetPrice: 800,
	})

	j := NewNotify(st, logx.Nop())
	if err := j.Run(ctx); err != nil {
		t.Fatal(err)
	}
	due, err := st.DueEmails(ctx, time.Now(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Fatalf("out-of-stock price triggered an alert: %+v", due)
	}
}

func TestNotifyIgnoresUnconfirmedTrackers(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	seedProduct(t, st, "bolt-500", "escooter")
	seedCacheRow(t, st, "bolt-500", "US", 500, true)
	if _, err := st.CreateTracker(ctx, storage.Tracker{
		Token: "tok-4", Email: "rider@example.com", ProductSlug: "bolt-500",
		Region: "US", Kind: storage.TrackerKindTarget, TargetPrice: 800,
	}); err != nil {
		t.Fatal(err)
	}

	j := NewNotify(st, logx.Nop())
	if err := j.Run(ctx); err != nil {
		t.Fatal(err)
	}
	due, err := st.DueEmails(ctx, time.Now(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 0 {
		t.Fatalf("unconfirmed tracker fired: %+v", due)
	}
}
