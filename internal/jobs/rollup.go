package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

const (
	analyticsKeepDays = 365
	outboxKeepDays    = 30
	offerStaleDays    = 7
)

// Rollup prunes aged data: price history past retention, analytics counters,
// finished outbox rows and offers no feed has refreshed in a week. Stale
// offers matter most; dropping them is what pulls a product's price off the
// site when a retailer delists it.
type Rollup struct {
	store           *storage.Store
	log             logx.Logger
	historyKeepDays int
	now             func() time.Time
}

func NewRollup(store *storage.Store, log logx.Logger, historyKeepDays int) *Rollup {
	if historyKeepDays <= 0 {
		historyKeepDays = 730
	}
	return &Rollup{
		store:           store,
		log:             log.With(logx.String("job", "rollup")),
		historyKeepDays: historyKeepDays,
		now:             time.Now,
	}
}

func (j *Rollup) Run(ctx context.Context) error {
	now := j.now()
	var errs []error

	history, err := j.store.PruneHistory(ctx, storage.SinceDay(now, j.historyKeepDays))
	if err != nil {
		errs = append(errs, fmt.Errorf("prune history: %w", err))
	}
	analytics, err := j.store.PruneAnalytics(ctx, storage.SinceDay(now, analyticsKeepDays))
	if err != nil {
		errs = append(errs, fmt.Errorf("prune analytics: %w", err))
	}
	outbox, err := j.store.PruneOutbox(ctx, now.AddDate(0, 0, -outboxKeepDays))
	if err != nil {
		errs = append(errs, fmt.Errorf("prune outbox: %w", err))
	}
	offers, err := j.store.PruneOffers(ctx, now.AddDate(0, 0, -offerStaleDays))
	if err != nil {
		errs = append(errs, fmt.Errorf("prune offers: %w", err))
	}

	j.log.Info("rollup finished",
		logx.Int64("history", history),
		logx.Int64("analytics", analytics),
		logx.Int64("outbox", outbox),
		logx.Int64("stale_offers", offers))
	return errors.Join(errs...)
}
