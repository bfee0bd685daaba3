package pricing

import "testing"

func TestConsolidatePrefersInStockThenPrice(t *testing.T) {
	t.Parallel()
	offers := []Offer{
		{Retailer: "cheap-but-out", Country: "US", Currency: "USD", Price: 699, InStock: false},
		{Retailer: "pricier-in-stock", Country: "US", Currency: "USD", Price: 799, InStock: true},
		{Retailer: "cheapest-in-stock", Country: "US", Currency: "USD", Price: 749, InStock: true},
	}
	got := Consolidate(offers)
	us, ok := got[RegionUS]
	if !ok {
		t.Fatal("no US price")
	}
	if us.Retailer != "cheapest-in-stock" || us.Price != 749 || !us.InStock {
		t.Fatalf("unexpected US winner: %+v", us)
	}
}

func TestConsolidateTieBreaksByRetailer(t *testing.T) {
	t.Parallel()
	offers := []Offer{
		{Retailer: "zeta", Country: "GB", Currency: "GBP", Price: 500, InStock: true},
		{Retailer: "alpha", Country: "GB", Currency: "GBP", Price: 500, InStock: true},
	}
	got := Consolidate(offers)
	if got[RegionGB].Retailer != "alpha" {
		t.Fatalf("expected alpha to win the tie, got %q", got[RegionGB].Retailer)
	}
}

func TestConsolidateAllOutOfStock(t *testing.T) {
	t.Parallel()
	offers := []Offer{
		{Retailer: "a", Country: "DE", Currency: "EUR", Price: 1399, InStock: false},
		{Retailer: "b", Country: "FR", Currency: "EUR", Price: 1299, InStock: false},
	}
	got := Consolidate(offers)
	eu, ok := got[RegionEU]
	if !ok {
		t.Fatal("expected an EU row even with everything out of stock")
	}
	if eu.InStock || eu.Price != 1299 || eu.Retailer != "b" {
		t.Fatalf("unexpected EU row: %+v", eu)
	}
}

func TestConsolidateDropsUnmappableAndFreeOffers(t *testing.T) {
	t.Parallel()
	offers := []Offer{
		{Retailer: "ch-shop", Country: "CH", Currency: "CHF", Price: 900, InStock: true},
		{Retailer: "broken-feed", Country: "US", Currency: "USD", Price: 0, InStock: true},
	}
	if got := Consolidate(offers); len(got) != 0 {
		t.Fatalf("expected empty result, got %+v", got)
	}
}

func TestConsolidateDropsForeignCurrencyOffers(t *testing.T) {
	t.Parallel()
	offers := []Offer{
		// CAD-priced offer shipped from a US retailer: 650 CAD is not cheaper
		// than 700 USD and must not win the US bucket.
		{Retailer: "cross-border", Country: "US", Currency: "CAD", Price: 650, InStock: true},
		{Retailer: "domestic", Country: "US", Currency: "USD", Price: 700, InStock: true},
		// Sweden buckets into EU but prices in SEK, not EUR.
		{Retailer: "se-shop", Country: "SE", Currency: "SEK", Price: 8990, InStock: true},
		{Retailer: "de-shop", Country: "DE", Currency: "EUR", Price: 850, InStock: true},
	}
	got := Consolidate(offers)
	us, ok := got[RegionUS]
	if !ok {
		t.Fatal("no US price")
	}
	if us.Retailer != "domestic" || us.Currency != "USD" {
		t.Fatalf("foreign-currency offer won the US bucket: %+v", us)
	}
	eu, ok := got[RegionEU]
	if !ok {
		t.Fatal("no EU price")
	}
	if eu.Retailer != "de-shop" || eu.Currency != "EUR" {
		t.Fatalf("SEK offer merged into the EU bucket: %+v", eu)
	}
}

func TestConsolidateSplitsRegions(t *testing.T) {
	t.Parallel()
	offers := []Offer{
		{Retailer: "us", Country: "US", Currency: "USD", Price: 799, InStock: true},
		{Retailer: "ca", Country: "CA", Currency: "CAD", Price: 1099, InStock: true},
		{Retailer: "au", Country: "AU", Currency: "AUD", Price: 1299, InStock: true},
		{Retailer: "de", Country: "DE", Currency: "EUR", Price: 749, InStock: true},
		{Retailer: "uk", Country: "UK", Currency: "GBP", Price: 649, InStock: true},
	}
	got := Consolidate(offers)
	if len(got) != 5 {
		t.Fatalf("expected all five regions, got %d: %+v", len(got), got)
	}
	if got[RegionGB].Currency != "GBP" || got[RegionEU].Price != 749 {
		t.Fatalf("region rows mixed up: %+v", got)
	}
}
