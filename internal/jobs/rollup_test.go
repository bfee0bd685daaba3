package jobs

import (
	"context"
	"testing"
	"time"

	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

func TestRollupPrunes(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	seedProduct(t, st, "bolt-500", "escooter")

	now := time.Now()
	old := storage.HistorySample{
		ProductSlug: "bolt-500", Region: "US",
		Day: storage.Day(now.AddDate(0, 0, -800)), Price: 900, Currency: "USD",
	}
	fresh := storage.HistorySample{
		ProductSlug: "bolt-500", Region: "US",
		Day: storage.Day(now.AddDate(0, 0, -10)), Price: 850, Currency: "USD",
	}
	for _, h := range []storage.HistorySample{old, fresh} {
		if err := st.UpsertHistory(ctx, h); err != nil {
			t.Fatal(err)
		}
	}

	// A stale offer last checked three weeks ago.
	if err := st.UpsertOffer(ctx, storage.Offer{
		ProductSlug: "bolt-500", Retailer: "ghost", Country: "US", Currency: "USD",
		Price: 700, CheckedAt: now.AddDate(0, 0, -21),
	}); err != nil {
		t.Fatal(err)
	}

	j := NewRollup(st, logx.Nop(), 730)
	if err := j.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	samples, err := st.HistoryForProduct(ctx, "bolt-500", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 1 || samples[0].Day != fresh.Day {
		t.Fatalf("samples = %+v, want only the fresh one", samples)
	}

	offers, err := st.OffersForProduct(ctx, "bolt-500")
	if err != nil {
		t.Fatal(err)
	}
	if len(offers) != 0 {
		t.Fatalf("stale offer survived: %+v", offers)
	}
}
