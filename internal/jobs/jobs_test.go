package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "ridewatch.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func seedProduct(t *testing.T, st *storage.Store, slug, ptype string) {
	t.Helper()
	err := st.UpsertProduct(context.Background(), storage.Product{
		Slug:      slug,
		Type:      ptype,
		Title:     "Test " + slug,
		Brand:     "Acme",
		Score:     8.0,
		Specs:     storage.Specs{RangeMi: 40, BatteryWh: 500, WeightLb: 50},
		Published: true,
	})
	if err != nil {
		t.Fatalf("seed product %s: %v", slug, err)
	}
}

func seedOffer(t *testing.T, st *storage.Store, slug, retailer, country, currency string, price float64, inStock bool) {
	t.Helper()
	err := st.UpsertOffer(context.Background(), storage.Offer{
		ProductSlug: slug,
		Retailer:    retailer,
		Country:     country,
		Currency:    currency,
		Price:       price,
		InStock:     inStock,
		URL:         "https://shop.example/" + slug,
		CheckedAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("seed offer %s/%s: %v", slug, retailer, err)
	}
}
