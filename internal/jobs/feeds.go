package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

// feedBodyLimit caps how much of a feed response we are willing to read.
const feedBodyLimit = 16 << 20

// FeedSource is one retailer price feed: a JSON array of rows over HTTP.
type FeedSource struct {
	Retailer string
	URL      string
	Country  string // ISO 3166-1 alpha-2
	Currency string // fallback when rows omit it
	Token    string // optional bearer token
	Timeout  time.Duration
}

type feedRow struct {
	SKU      string  `json:"sku"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency,omitempty"`
	InStock  *bool   `json:"in_stock,omitempty"` // omitted means in stock
	URL      string  `json:"url,omitempty"`
}

// Feeds pulls every configured retailer feed and upserts current offers.
// Unknown SKUs (no published product with that slug) are counted and skipped.
type Feeds struct {
	store  *storage.Store
	log    logx.Logger
	client *http.Client

	mu      sync.Mutex
	sources []FeedSource
}

func NewFeeds(store *storage.Store, log logx.Logger, sources []FeedSource) *Feeds {
	return &Feeds{
		store:   store,
		log:     log.With(logx.String("job", "feeds")),
		client:  &http.Client{},
		sources: sources,
	}
}

// SetSources swaps the feed list on config reload.
func (j *Feeds) SetSources(sources []FeedSource) {
	j.mu.Lock()
	j.sources = sources
	j.mu.Unlock()
}

func (j *Feeds) Run(ctx context.Context) error {
	j.mu.Lock()
	sources := make([]FeedSource, len(j.sources))
	copy(sources, j.sources)
	j.mu.Unlock()
	if len(sources) == 0 {
		j.log.Debug("no feeds configured")
		return nil
	}

	products, err := j.store.Products(ctx, "")
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	known := make(map[string]bool, len(products))
	for _, p := range products {
		known[p.Slug] = true
	}

	var errs []error
	for _, src := range sources {
		if err := j.pullOne(ctx, src, known); err != nil {
			j.log.Warn("feed pull failed",
				logx.String("retailer", src.Retailer),
				logx.String("country", src.Country),
				logx.Err(err))
			errs = append(errs, fmt.Errorf("%s/%s: %w", src.Retailer, src.Country, err))
		}
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
	}
	return errors.Join(errs...)
}

func (j *Feeds) pullOne(ctx context.Context, src FeedSource, known map[string]bool) error {
	reqCtx := ctx
	if src.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, src.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, src.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if src.Token != "" {
		req.Header.Set("Authorization", "Bearer "+src.Token)
	}

	resp, err := j.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var rows []feedRow
	dec := json.NewDecoder(io.LimitReader(resp.Body, feedBodyLimit))
	if err := dec.Decode(&rows); err != nil {
		return fmt.Errorf("decode feed: %w", err)
	}

	now := time.Now()
	upserted, skipped := 0, 0
	for _, row := range rows {
		slug := strings.TrimSpace(row.SKU)
		if slug == "" || !known[slug] || row.Price <= 0 {
			skipped++
			continue
		}
		currency := row.Currency
		if currency == "" {
			currency = src.Currency
		}
		inStock := true
		if row.InStock != nil {
			inStock = *row.InStock
		}
		offer := storage.Offer{
			ProductSlug: slug,
			Retailer:    src.Retailer,
			Country:     src.Country,
			Currency:    currency,
			Price:       row.Price,
			InStock:     inStock,
			URL:         row.URL,
			CheckedAt:   now,
		}
		if err := j.store.UpsertOffer(ctx, offer); err != nil {
			return fmt.Errorf("upsert %s: %w", slug, err)
		}
		upserted++
	}

	j.log.Info("feed pulled",
		logx.String("retailer", src.Retailer),
		logx.String("country", src.Country),
		logx.Int("offers", upserted),
		logx.Int("skipped", skipped))
	return nil
}
