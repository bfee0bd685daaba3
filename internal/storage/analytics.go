package storage

import (
	"context"
	"sort"
	"strings"
	"time"
)

// BumpView increments today's view counter for a product.
func (s *Store) BumpView(ctx context.Context, slug string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO product_views(product_slug, day, views) VALUES(?,?,1)
		 ON CONFLICT(product_slug, day) DO UPDATE SET views = views + 1`,
		slug, Day(at))
	return err
}

// BumpComparison increments today's counter for a compared set of products.
// Slugs are sorted so "a vs b" and "b vs a" share one key.
func (s *Store) BumpComparison(ctx context.Context, slugs []string, at time.Time) error {
	key := ComparisonKey(slugs)
	if key == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO comparison_views(pair_key, day, views) VALUES(?,?,1)
		 ON CONFLICT(pair_key, day) DO UPDATE SET views = views + 1`,
		key, Day(at))
	return err
}

// ComparisonKey normalizes a compared product set into a stable key.
func ComparisonKey(slugs []string) string {
	clean := make([]string, 0, len(slugs))
	for _, s := range slugs {
		if v := strings.TrimSpace(s); v != "" {
			clean = append(clean, v)
		}
	}
	if len(clean) < 2 {
		return ""
	}
	sort.Strings(clean)
	return strings.Join(clean, "|")
}

// ViewCounts sums per-product views since a day, most viewed first.
func (s *Store) ViewCounts(ctx context.Context, sinceDay string) ([]ViewCount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_slug, SUM(views) FROM product_views
		 WHERE day >= ? GROUP BY product_slug ORDER BY SUM(views) DESC`, sinceDay)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ViewCount
	for rows.Next() {
		var v ViewCount
		if err := rows.Scan(&v.ProductSlug, &v.Views); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// TopComparisons sums pair counters since a day, most compared first.
func (s *Store) TopComparisons(ctx context.Context, sinceDay string, limit int) ([]ComparisonCount, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT pair_key, SUM(views) FROM comparison_views
		 WHERE day >= ? GROUP BY pair_key ORDER BY SUM(views) DESC LIMIT ?`, sinceDay, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ComparisonCount
	for rows.Next() {
		var c ComparisonCount
		if err := rows.Scan(&c.PairKey, &c.Views); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PruneAnalytics drops counters older than the cutoff day.
func (s *Store) PruneAnalytics(ctx context.Context, beforeDay string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM product_views WHERE day < ?`, beforeDay)
	if err != nil {
		return 0, err
	}
	n1, _ := res.RowsAffected()
	res, err = s.db.ExecContext(ctx, `DELETE FROM comparison_views WHERE day < ?`, beforeDay)
	if err != nil {
		return n1, err
	}
	n2, _ := res.RowsAffected()
	return n1 + n2, nil
}
