package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"ridewatch/internal/pricing"
	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

// Newsletter builds the periodic deals digest from the price cache and
// enqueues one copy per active subscriber. A cache row counts as a deal when
// the rebuild job flagged it (price at least 10% under its 3-month average).
// No deals, no send.
type Newsletter struct {
	store *storage.Store
	log   logx.Logger
	top   int
	now   func() time.Time
}

func NewNewsletter(store *storage.Store, log logx.Logger, top int) *Newsletter {
	if top <= 0 {
		top = 10
	}
	return &Newsletter{
		store: store,
		log:   log.With(logx.String("job", "newsletter")),
		top:   top,
		now:   time.Now,
	}
}

type deal struct {
	title    string
	region   string
	price    float64
	currency string
	retailer string
	url      string
	discount float64
}

func (j *Newsletter) Run(ctx context.Context) error {
	subscribers, err := j.store.ActiveSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("load subscribers: %w", err)
	}
	if len(subscribers) == 0 {
		j.log.Debug("no subscribers")
		return nil
	}

	deals, err := j.collectDeals(ctx)
	if err != nil {
		return err
	}
	if len(deals) == 0 {
		j.log.Info("no deals this round; newsletter skipped")
		return nil
	}

	subject := fmt.Sprintf("%d price drops worth a look", len(deals))
	var errs []error
	enqueued := 0
	for _, sub := range subscribers {
		body := digestBody(deals, sub.Token)
		if _, err := j.store.EnqueueEmail(ctx, storage.OutboxEmail{
			Recipient: sub.Email,
			Subject:   subject,
			Body:      body,
		}); err != nil {
			errs = append(errs, fmt.Errorf("subscriber %d: %w", sub.ID, err))
			continue
		}
		enqueued++
	}
	j.log.Info("newsletter enqueued", logx.Int("deals", len(deals)), logx.Int("recipients", enqueued))
	return errors.Join(errs...)
}

func (j *Newsletter) collectDeals(ctx context.Context) ([]deal, error) {
	cache, err := j.store.CacheRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	products, err := j.store.Products(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	titles := make(map[string]string, len(products))
	for _, p := range products {
		titles[p.Slug] = p.Title
	}

	var deals []deal
	for slug, rows := range cache {
		title, ok := titles[slug]
		if !ok {
			continue
		}
		for _, row := range rows {
			var m pricing.Metrics
			if err := json.Unmarshal([]byte(row.MetricsJSON), &m); err != nil || !m.Deal {
				continue
			}
			deals = append(deals, deal{
				title:    title,
				region:   row.Region,
				price:    row.Price,
				currency: row.Currency,
				retailer: row.Retailer,
				url:      row.URL,
				discount: m.DiscountPct,
			})
		}
	}
	sort.Slice(deals, func(i, k int) bool {
		if deals[i].discount != deals[k].discount {
			return deals[i].discount > deals[k].discount
		}
		return deals[i].title < deals[k].title
	})
	if len(deals) > j.top {
		deals = deals[:j.top]
	}
	return deals, nil
}

func digestBody(deals []deal, unsubToken string) string {
	var b strings.Builder
	b.WriteString("This week's biggest price drops:\n\n")
	for i, d := range deals {
		fmt.Fprintf(&b, "%d. %s (%s): %.2f %s at %s, %.0f%% under its 3-month average\n   %s\n",
			i+1, d.title, d.region, d.price, d.currency, d.retailer, d.discount, d.url)
	}
	fmt.Fprintf(&b, "\nTo unsubscribe, use your token: %s\n", unsubToken)
	return b.String()
}
