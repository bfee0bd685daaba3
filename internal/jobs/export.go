package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"ridewatch/internal/storage"
	logx "ridewatch/pkg/logx"
)

// Export writes the three static JSON feeds the site serves directly:
//
//	finder.json     - full catalog with specs, regional prices and value metrics
//	comparison.json - catalog with price stats plus the most-compared pairs
//	search.json     - slim index for client-side search
//
// Files are written to a temp file and renamed so readers never see a partial
// feed. Popularity comes from the view counters over the configured window.
type Export struct {
	store          *storage.Store
	log            logx.Logger
	dir            string
	popularityDays int
	now            func() time.Time
}

func NewExport(store *storage.Store, log logx.Logger, dir string, popularityDays int) *Export {
	if popularityDays <= 0 {
		popularityDays = 30
	}
	return &Export{
		store:          store,
		log:            log.With(logx.String("job", "export")),
		dir:            dir,
		popularityDays: popularityDays,
		now:            time.Now,
	}
}

type regionPriceDoc struct {
	Price    float64         `json:"price"`
	Currency string          `json:"currency"`
	Retailer string          `json:"retailer"`
	URL      string          `json:"url,omitempty"`
	InStock  bool            `json:"in_stock"`
	Stats    json.RawMessage `json:"stats,omitempty"`
	Metrics  json.RawMessage `json:"metrics,omitempty"`
}

type finderDoc struct {
	GeneratedAt time.Time       `json:"generated_at"`
	Products    []finderProduct `json:"products"`
}

type finderProduct struct {
	Slug       string                    `json:"slug"`
	Type       string                    `json:"type"`
	Title      string                    `json:"title"`
	Brand      string                    `json:"brand"`
	Score      float64                   `json:"score,omitempty"`
	Specs      storage.Specs             `json:"specs"`
	Image      string                    `json:"image,omitempty"`
	Popularity int64                     `json:"popularity,omitempty"`
	Prices     map[string]regionPriceDoc `json:"prices,omitempty"`
}

type comparisonDoc struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Products    []finderProduct  `json:"products"`
	TopPairs    []comparisonPair `json:"top_pairs,omitempty"`
}

type comparisonPair struct {
	Pair  string `json:"pair"`
	Views int64  `json:"views"`
}

type searchDoc struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Entries     []searchEntry `json:"entries"`
}

type searchEntry struct {
	Slug       string             `json:"slug"`
	Title      string             `json:"title"`
	Brand      string             `json:"brand"`
	Type       string             `json:"type"`
	Image      string             `json:"image,omitempty"`
	Popularity int64              `json:"popularity,omitempty"`
	Prices     map[string]float64 `json:"prices,omitempty"`
}

func (j *Export) Run(ctx context.Context) error {
	if j.dir == "" {
		return fmt.Errorf("export dir not configured")
	}

	products, err := j.store.Products(ctx, "")
	if err != nil {
		return fmt.Errorf("load products: %w", err)
	}
	cache, err := j.store.CacheRows(ctx)
	if err != nil {
		return fmt.Errorf("load cache: %w", err)
	}

	now := j.now()
	since := storage.SinceDay(now, j.popularityDays)
	viewCounts, err := j.store.ViewCounts(ctx, since)
	if err != nil {
		return fmt.Errorf("load views: %w", err)
	}
	views := make(map[string]int64, len(viewCounts))
	for _, v := range viewCounts {
		views[v.ProductSlug] = v.Views
	}
	comparisons, err := j.store.TopComparisons(ctx, since, 50)
	if err != nil {
		return fmt.Errorf("load comparisons: %w", err)
	}

	withStats := buildProducts(products, cache, views, true)
	withMetrics := buildProducts(products, cache, views, false)

	finder := finderDoc{GeneratedAt: now, Products: withMetrics}
	comparison := comparisonDoc{GeneratedAt: now, Products: withStats}
	for _, c := range comparisons {
		comparison.TopPairs = append(comparison.TopPairs, comparisonPair{Pair: c.PairKey, Views: c.Views})
	}
	search := searchDoc{GeneratedAt: now, Entries: buildSearch(withMetrics)}

	for name, doc := range map[string]any{
		"finder.json":     finder,
		"comparison.json": comparison,
		"search.json":     search,
	} {
		if err := writeJSONAtomic(j.dir, name, doc); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	j.log.Info("exports written",
		logx.String("dir", j.dir),
		logx.Int("products", len(products)),
		logx.Int("top_pairs", len(comparison.TopPairs)))
	return nil
}

// buildProducts assembles the shared per-product document. stats selects
// which cached blob rides along: price statistics (comparison pages) or value
// metrics (finder pages).
func buildProducts(products []storage.Product, cache map[string][]storage.CacheRow, views map[string]int64, stats bool) []finderProduct {
	out := make([]finderProduct, 0, len(products))
	for _, p := range products {
		fp := finderProduct{
			Slug:       p.Slug,
			Type:       p.Type,
			Title:      p.Title,
			Brand:      p.Brand,
			Score:      p.Score,
			Specs:      p.Specs,
			Image:      p.Image,
			Popularity: views[p.Slug],
		}
		rows := cache[p.Slug]
		if len(rows) > 0 {
			fp.Prices = make(map[string]regionPriceDoc, len(rows))
			for _, r := range rows {
				doc := regionPriceDoc{
					Price:    r.Price,
					Currency: r.Currency,
					Retailer: r.Retailer,
					URL:      r.URL,
					InStock:  r.InStock,
				}
				if stats {
					doc.Stats = json.RawMessage(r.StatsJSON)
				} else {
					doc.Metrics = json.RawMessage(r.MetricsJSON)
				}
				fp.Prices[r.Region] = doc
			}
		}
		out = append(out, fp)
	}
	// Most viewed first; title keeps the order stable for the long tail.
	sort.SliceStable(out, func(i, k int) bool {
		if out[i].Popularity != out[k].Popularity {
			return out[i].Popularity > out[k].Popularity
		}
		return out[i].Title < out[k].Title
	})
	return out
}

func buildSearch(products []finderProduct) []searchEntry {
	out := make([]searchEntry, 0, len(products))
	for _, p := range products {
		e := searchEntry{
			Slug:       p.Slug,
			Title:      p.Title,
			Brand:      p.Brand,
			Type:       p.Type,
			Image:      p.Image,
			Popularity: p.Popularity,
		}
		if len(p.Prices) > 0 {
			e.Prices = make(map[string]float64, len(p.Prices))
			for region, doc := range p.Prices {
				e.Prices[region] = doc.Price
			}
		}
		out = append(out, e)
	}
	return out
}

func writeJSONAtomic(dir, name string, v any) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(v); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, name))
}
