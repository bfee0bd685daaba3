package pricing

import "testing"

func TestDeriveMetricsPerUnit(t *testing.T) {
	t.Parallel()
	spec := SpecProfile{RangeMi: 40, BatteryWh: 500, WeightLb: 50, Score: 8.5}
	m := DeriveMetrics(spec, 1000, Stats{})
	if m.PricePerMi != 25 || m.PricePerWh != 2 || m.PricePerLb != 20 {
		t.Fatalf("per-unit = %+v", m)
	}
	if m.ValueScore != 0.85 {
		t.Fatalf("value score = %v, want 0.85", m.ValueScore)
	}
	if m.Deal || m.DiscountPct != 0 {
		t.Fatalf("no history should mean no deal, got %+v", m)
	}
}

func TestDeriveMetricsUnknownSpecs(t *testing.T) {
	t.Parallel()
	m := DeriveMetrics(SpecProfile{}, 1000, Stats{})
	if m.PricePerMi != 0 || m.PricePerWh != 0 || m.PricePerLb != 0 || m.ValueScore != 0 {
		t.Fatalf("zero spec fields should suppress metrics, got %+v", m)
	}
}

func TestDeriveMetricsDealFlag(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		price    float64
		avg      float64
		wantPct  float64
		wantDeal bool
	}{
		{"well under average", 800, 1000, 20, true},
		{"exactly at threshold", 900, 1000, 10, true},
		{"under average but shallow", 950, 1000, 5, false},
		{"at average", 1000, 1000, 0, false},
		{"above average", 1100, 1000, 0, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			stats := Stats{M3: &Window{Avg: tt.avg, Samples: 10}}
			m := DeriveMetrics(SpecProfile{}, tt.price, stats)
			if m.DiscountPct != tt.wantPct || m.Deal != tt.wantDeal {
				t.Fatalf("price %v vs avg %v: got pct=%v deal=%v, want pct=%v deal=%v",
					tt.price, tt.avg, m.DiscountPct, m.Deal, tt.wantPct, tt.wantDeal)
			}
		})
	}
}

func TestDeriveMetricsZeroPrice(t *testing.T) {
	t.Parallel()
	m := DeriveMetrics(SpecProfile{RangeMi: 40, Score: 9}, 0, Stats{M3: &Window{Avg: 500}})
	if m != (Metrics{}) {
		t.Fatalf("zero price should yield zero metrics, got %+v", m)
	}
}
