package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ridewatch/internal/pricing"
	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

// CacheRebuild recomputes the denormalized per-(product, region) price rows:
// the consolidated current price plus serialized stats and value metrics. The
// cache is what the API and the exports read, so catalog pages never touch
// raw offers or history.
type CacheRebuild struct {
	store *storage.Store
	log   logx.Logger
	now   func() time.Time
}

func NewCacheRebuild(store *storage.Store, log logx.Logger) *CacheRebuild {
	return &CacheRebuild{
		store: store,
		log:   log.With(logx.String("job", "cache_rebuild")),
		now:   time.Now,
	}
}

func (j *CacheRebuild) Run(ctx context.Context) error {
	types, err := j.store.ProductTypes(ctx)
	if err != nil {
		return fmt.Errorf("load types: %w", err)
	}

	now := j.now()
	total := 0
	var errs []error
	for _, ptype := range types {
		n, err := j.rebuildType(ctx, ptype, now)
		total += n
		if err != nil {
			errs = append(errs, fmt.Errorf("type %s: %w", ptype, err))
		}
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}
	j.log.Info("cache rebuilt", logx.Int("rows", total), logx.Int("types", len(types)))
	return errors.Join(errs...)
}

func (j *CacheRebuild) rebuildType(ctx context.Context, ptype string, now time.Time) (int, error) {
	products, err := j.store.Products(ctx, ptype)
	if err != nil {
		return 0, err
	}
	offers, err := j.store.OffersForType(ctx, ptype)
	if err != nil {
		return 0, err
	}
	history, err := j.store.HistoryForType(ctx, ptype, "")
	if err != nil {
		return 0, err
	}

	rows := 0
	for _, p := range products {
		current := pricing.Consolidate(toPricingOffers(offers[p.Slug]))

		// Regions that lost their price get their cache row dropped rather
		// than serving a stale one.
		var stale []string
		for _, region := range pricing.Regions() {
			if _, ok := current[region]; !ok {
				stale = append(stale, string(region))
			}
		}
		if err := j.store.DeleteCacheRows(ctx, p.Slug, stale); err != nil {
			return rows, fmt.Errorf("%s: drop stale rows: %w", p.Slug, err)
		}

		byRegion := samplesByRegion(history[p.Slug])
		spec := pricing.SpecProfile{
			RangeMi:   p.Specs.RangeMi,
			BatteryWh: p.Specs.BatteryWh,
			WeightLb:  p.Specs.WeightLb,
			Score:     p.Score,
		}
		for region, price := range current {
			stats := pricing.ComputeStats(byRegion[region], now)
			metrics := pricing.DeriveMetrics(spec, price.Price, stats)

			statsJSON, err := json.Marshal(stats)
			if err != nil {
				return rows, fmt.Errorf("%s/%s: marshal stats: %w", p.Slug, region, err)
			}
			metricsJSON, err := json.Marshal(metrics)
			if err != nil {
				return rows, fmt.Errorf("%s/%s: marshal metrics: %w", p.Slug, region, err)
			}
			row := storage.CacheRow{
				ProductSlug: p.Slug,
				Region:      string(region),
				Price:       price.Price,
				Currency:    price.Currency,
				Retailer:    price.Retailer,
				URL:         price.URL,
				InStock:     price.InStock,
				StatsJSON:   string(statsJSON),
				MetricsJSON: string(metricsJSON),
				RebuiltAt:   now,
			}
			if err := j.store.UpsertCacheRow(ctx, row); err != nil {
				return rows, fmt.Errorf("%s/%s: upsert: %w", p.Slug, region, err)
			}
			rows++
		}
	}
	return rows, nil
}

func toPricingOffers(offers []storage.Offer) []pricing.Offer {
	out := make([]pricing.Offer, 0, len(offers))
	for _, o := range offers {
		out = append(out, pricing.Offer{
			Retailer: o.Retailer,
			Country:  o.Country,
			Currency: o.Currency,
			Price:    o.Price,
			InStock:  o.InStock,
			URL:      o.URL,
		})
	}
	return out
}

func samplesByRegion(history []storage.HistorySample) map[pricing.Region][]pricing.Sample {
	out := make(map[pricing.Region][]pricing.Sample)
	for _, h := range history {
		day, err := time.Parse("2006-01-02", h.Day)
		if err != nil {
			continue
		}
		region := pricing.Region(h.Region)
		out[region] = append(out[region], pricing.Sample{Day: day, Price: h.Price})
	}
	return out
}
