package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

// Notify walks the live (confirmed, active) price trackers and enqueues an
// alert email for every tracker whose condition the cached regional price now
// meets. A per-tracker cooldown stops repeat alerts while a price sits below
// the threshold; delivery itself is the outbox job's problem.
type Notify struct {
	store *storage.Store
	log   logx.Logger
	now   func() time.Time
}

func NewNotify(store *storage.Store, log logx.Logger) *Notify {
	return &Notify{
		store: store,
		log:   log.With(logx.String("job", "notify")),
		now:   time.Now,
	}
}

func (j *Notify) Run(ctx context.Context) error {
	trackers, err := j.store.LiveTrackers(ctx)
	if err != nil {
		return fmt.Errorf("load trackers: %w", err)
	}
	if len(trackers) == 0 {
		return nil
	}

	now := j.now()
	fired := 0
	var errs []error
	for _, t := range trackers {
		row, err := j.store.CacheRow(ctx, t.ProductSlug, t.Region)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("tracker %d: %w", t.ID, err))
			continue
		}
		if !triggered(t, row) || !cooledDown(t, now) {
			continue
		}

		product, err := j.store.Product(ctx, t.ProductSlug)
		if err != nil {
			errs = append(errs, fmt.Errorf("tracker %d: %w", t.ID, err))
			continue
		}
		subject, body := alertEmail(t, product, row)
		if _, err := j.store.EnqueueEmail(ctx, storage.OutboxEmail{
			Recipient: t.Email,
			Subject:   subject,
			Body:      body,
		}); err != nil {
			errs = append(errs, fmt.Errorf("tracker %d: enqueue: %w", t.ID, err))
			continue
		}
		if err := j.store.MarkTrackerNotified(ctx, t.ID, now); err != nil {
			errs = append(errs, fmt.Errorf("tracker %d: mark notified: %w", t.ID, err))
			continue
		}
		fired++
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}
	if fired > 0 {
		j.log.Info("tracker alerts enqueued", logx.Int("fired", fired), logx.Int("trackers", len(trackers)))
	}
	return errors.Join(errs...)
}

// triggered reports whether the cached price meets the tracker's condition.
// Out-of-stock prices never trigger; nobody wants an alert they cannot buy.
func triggered(t storage.Tracker, row storage.CacheRow) bool {
	if !row.InStock || row.Price <= 0 {
		return false
	}
	switch t.Kind {
	case storage.TrackerKindTarget:
		return t.TargetPrice > 0 && row.Price <= t.TargetPrice
	case storage.TrackerKindDrop:
		if t.BaselinePrice <= 0 || t.DropPercent <= 0 {
			return false
		}
		threshold := t.BaselinePrice * (1 - t.DropPercent/100)
		return row.Price <= threshold
	default:
		return false
	}
}

func cooledDown(t storage.Tracker, now time.Time) bool {
	if t.LastNotified.IsZero() {
		return true
	}
	return now.Sub(t.LastNotified) >= t.Cooldown
}

func alertEmail(t storage.Tracker, p storage.Product, row storage.CacheRow) (subject, body string) {
	subject = fmt.Sprintf("Price alert: %s is now %.2f %s", p.Title, row.Price, row.Currency)
	var reason string
	switch t.Kind {
	case storage.TrackerKindTarget:
		reason = fmt.Sprintf("your target of %.2f %s", t.TargetPrice, row.Currency)
	case storage.TrackerKindDrop:
		reason = fmt.Sprintf("a %.0f%% drop from %.2f %s when you set the alert", t.DropPercent, t.BaselinePrice, row.Currency)
	}
	body = fmt.Sprintf(
		"%s (%s region) hit %.2f %s at %s, matching %s.\n\nBuy: %s\n\nTo stop this alert, use your tracker token: %s\n",
		p.Title, t.Region, row.Price, row.Currency, row.Retailer, reason, row.URL, t.Token,
	)
	return subject, body
}
