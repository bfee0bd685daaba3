package jobs

import (
	"context"
	"testing"

	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

func TestSnapshotWritesDailyHistory(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	seedProduct(t, st, "bolt-500", "escooter")
	seedOffer(t, st, "bolt-500", "voltshop", "US", "USD", 800, true)
	seedOffer(t, st, "bolt-500", "scootmart", "US", "USD", 780, true)
	seedOffer(t, st, "bolt-500", "ukshop", "GB", "GBP", 650, false)

	j := NewSnapshot(st, logx.Nop())
	if err := j.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	samples, err := st.HistoryForProduct(ctx, "bolt-500", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 {
		t.Fatalf("samples = %+v, want US and GB", samples)
	}
	byRegion := map[string]storage.HistorySample{}
	for _, s := range samples {
		byRegion[s.Region] = s
	}
	if byRegion["US"].Price != 780 || !byRegion["US"].InStock {
		t.Fatalf("US sample = %+v", byRegion["US"])
	}
	// Out-of-stock price is still recorded, flagged as such.
	if byRegion["GB"].Price != 650 || byRegion["GB"].InStock {
		t.Fatalf("GB sample = %+v", byRegion["GB"])
	}

	// Same-day rerun updates rather than duplicates.
	seedOffer(t, st, "bolt-500", "scootmart", "US", "USD", 760, true)
	if err := j.Run(ctx); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	samples, err = st.HistoryForProduct(ctx, "bolt-500", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 2 {
		t.Fatalf("rerun duplicated rows: %+v", samples)
	}
	for _, s := range samples {
		if s.Region == "US" && s.Price != 760 {
			t.Fatalf("US sample not updated: %+v", s)
		}
	}
}
