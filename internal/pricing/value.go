package pricing

// SpecProfile is the subset of a product's spec sheet the value metrics use.
// Zero fields mean "unknown" and suppress the metrics that need them.
type SpecProfile struct {
	RangeMi   float64
	BatteryWh float64
	WeightLb  float64
	Score     float64 // editorial review score 0..10
}

// Metrics are the derived efficiency/value numbers for one regional price.
type Metrics struct {
	PricePerMi float64 `json:"price_per_mi,omitempty"`
	PricePerWh float64 `json:"price_per_wh,omitempty"`
	PricePerLb float64 `json:"price_per_lb,omitempty"`

	// ValueScore relates the review score to the price: score per 100 units
	// of currency. Higher is better value.
	ValueScore float64 `json:"value_score,omitempty"`

	// DiscountPct is how far the current price sits under the 3-month
	// average, in percent. Zero when at or above average.
	DiscountPct float64 `json:"discount_pct,omitempty"`

	// Deal marks prices at least 10% under the 3-month average.
	Deal bool `json:"deal,omitempty"`
}

const dealThresholdPct = 10.0

// DeriveMetrics computes value metrics for one region. Price must be the
// region's consolidated current price; stats may be zero-valued when the
// product has no history yet.
func DeriveMetrics(spec SpecProfile, price float64, stats Stats) Metrics {
	var m Metrics
	if price <= 0 {
		return m
	}
	if spec.RangeMi > 0 {
		m.PricePerMi = round2(price / spec.RangeMi)
	}
	if spec.BatteryWh > 0 {
		m.PricePerWh = round2(price / spec.BatteryWh)
	}
	if spec.WeightLb > 0 {
		m.PricePerLb = round2(price / spec.WeightLb)
	}
	if spec.Score > 0 {
		m.ValueScore = round2(spec.Score / (price / 100))
	}
	if stats.M3 != nil && stats.M3.Avg > 0 && price < stats.M3.Avg {
		m.DiscountPct = round2((stats.M3.Avg - price) / stats.M3.Avg * 100)
		m.Deal = m.DiscountPct >= dealThresholdPct
	}
	return m
}
