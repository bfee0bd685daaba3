package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"ridewatch/internal/mailer"
	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

const (
	outboxMaxAttempts   = 5
	outboxBackoffBase   = 5 * time.Minute
	outboxBackoffGrowth = 4
	outboxBackoffMax    = 6 * time.Hour
)

// Outbox drains due pending emails through the SMTP sender. Sends are
// rate-limited so a big newsletter batch cannot get the relay throttled.
// Failures are rescheduled with exponential backoff and parked as failed
// after the attempt budget runs out.
type Outbox struct {
	store   *storage.Store
	sender  mailer.Sender
	log     logx.Logger
	limiter *rate.Limiter
	batch   int
	now     func() time.Time
}

func NewOutbox(store *storage.Store, sender mailer.Sender, log logx.Logger, ratePerSec, batch int) *Outbox {
	if ratePerSec <= 0 {
		ratePerSec = 2
	}
	if batch <= 0 {
		batch = 50
	}
	return &Outbox{
		store:   store,
		sender:  sender,
		log:     log.With(logx.String("job", "outbox")),
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), 1),
		batch:   batch,
		now:     time.Now,
	}
}

func (j *Outbox) Run(ctx context.Context) error {
	if j.sender == nil {
		return nil
	}
	due, err := j.store.DueEmails(ctx, j.now(), j.batch)
	if err != nil {
		return fmt.Errorf("load due emails: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	sent, failed := 0, 0
	var errs []error
	for _, e := range due {
		if err := j.limiter.Wait(ctx); err != nil {
			errs = append(errs, err)
			break
		}
		if err := j.sender.Send(ctx, mailer.Message{To: e.Recipient, Subject: e.Subject, Body: e.Body}); err != nil {
			failed++
			attempts := e.Attempts + 1
			exhausted := attempts >= outboxMaxAttempts
			next := j.now().Add(outboxBackoff(attempts))
			if markErr := j.store.MarkEmailFailed(ctx, e.ID, err.Error(), next, exhausted); markErr != nil {
				errs = append(errs, fmt.Errorf("email %d: mark failed: %w", e.ID, markErr))
			}
			if exhausted {
				j.log.Warn("email given up",
					logx.Int64("id", e.ID),
					logx.Int("attempts", attempts),
					logx.Err(err))
			} else {
				j.log.Debug("email send failed; rescheduled",
					logx.Int64("id", e.ID),
					logx.Int("attempts", attempts),
					logx.Time("next_attempt", next),
					logx.Err(err))
			}
			continue
		}
		if err := j.store.MarkEmailSent(ctx, e.ID, j.now()); err != nil {
			errs = append(errs, fmt.Errorf("email %d: mark sent: %w", e.ID, err))
			continue
		}
		sent++
	}
	j.log.Info("outbox drained", logx.Int("sent", sent), logx.Int("failed", failed), logx.Int("due", len(due)))
	return errors.Join(errs...)
}

// outboxBackoff returns the delay before the next attempt after the given
// completed attempt count.
func outboxBackoff(attempts int) time.Duration {
	d := outboxBackoffBase
	for i := 1; i < attempts; i++ {
		d *= outboxBackoffGrowth
		if d > outboxBackoffMax {
			return outboxBackoffMax
		}
	}
	if d > outboxBackoffMax {
		d = outboxBackoffMax
	}
	return d
}
