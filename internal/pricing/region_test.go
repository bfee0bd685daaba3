package pricing

import "testing"

func TestBucketCountry(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		country  string
		currency string
		want     Region
		ok       bool
	}{
		{"us", "US", "USD", RegionUS, true},
		{"gb", "GB", "GBP", RegionGB, true},
		{"uk alias", "UK", "", RegionGB, true},
		{"gb not eu", "GB", "EUR", RegionGB, true},
		{"germany", "DE", "EUR", RegionEU, true},
		{"france lowercase", "fr", "", RegionEU, true},
		{"canada", "CA", "CAD", RegionCA, true},
		{"australia", "AU", "AUD", RegionAU, true},
		{"unknown country, currency fallback", "NO", "EUR", RegionEU, true},
		{"empty country, currency fallback", "", "CAD", RegionCA, true},
		{"switzerland chf unmappable", "CH", "CHF", "", false},
		{"nothing", "", "", "", false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, ok := BucketCountry(tt.country, tt.currency)
			if ok != tt.ok || got != tt.want {
				t.Fatalf("BucketCountry(%q, %q) = %v, %v; want %v, %v",
					tt.country, tt.currency, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestRegionCurrency(t *testing.T) {
	t.Parallel()
	for _, r := range Regions() {
		if r.Currency() == "" {
			t.Fatalf("region %s has no currency", r)
		}
	}
}
