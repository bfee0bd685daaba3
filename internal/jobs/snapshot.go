package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridewatch/internal/pricing"
	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

// Snapshot writes one consolidated price per (product, region) into the daily
// history. Regions with no current price simply have no row for the day; the
// stats windows treat missing days as gaps, not zeros. Running the job twice
// on the same day updates the day's row.
type Snapshot struct {
	store *storage.Store
	log   logx.Logger
	now   func() time.Time
}

func NewSnapshot(store *storage.Store, log logx.Logger) *Snapshot {
	return &Snapshot{
		store: store,
		log:   log.With(logx.String("job", "snapshot")),
		now:   time.Now,
	}
}

func (j *Snapshot) Run(ctx context.Context) error {
	types, err := j.store.ProductTypes(ctx)
	if err != nil {
		return fmt.Errorf("load types: %w", err)
	}

	day := storage.Day(j.now())
	total := 0
	var errs []error
	for _, ptype := range types {
		offers, err := j.store.OffersForType(ctx, ptype)
		if err != nil {
			errs = append(errs, fmt.Errorf("type %s: %w", ptype, err))
			continue
		}
		for slug, list := range offers {
			for region, price := range pricing.Consolidate(toPricingOffers(list)) {
				sample := storage.HistorySample{
					ProductSlug: slug,
					Region:      string(region),
					Day:         day,
					Price:       price.Price,
					Currency:    price.Currency,
					InStock:     price.InStock,
				}
				if err := j.store.UpsertHistory(ctx, sample); err != nil {
					errs = append(errs, fmt.Errorf("%s/%s: %w", slug, region, err))
					continue
				}
				total++
			}
		}
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}
	j.log.Info("prices snapshotted", logx.String("day", day), logx.Int("samples", total))
	return errors.Join(errs...)
}
