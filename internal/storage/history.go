package storage

import (
	"context"
	"errors"
	"time"
)

// UpsertHistory records the consolidated daily price. Re-running the snapshot
// job on the same day updates the row instead of duplicating it.
func (s *Store) UpsertHistory(ctx context.Context, h HistorySample) error {
	if h.ProductSlug == "" || h.Region == "" || h.Day == "" {
		return errors.New("history sample needs product, region and day")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO price_history(product_slug, region, day, price, currency, in_stock)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(product_slug, region, day) DO UPDATE SET
		   price=excluded.price, currency=excluded.currency, in_stock=excluded.in_stock`,
		h.ProductSlug, h.Region, h.Day, h.Price, h.Currency, boolInt(h.InStock),
	)
	return err
}

// HistoryForProduct returns samples for one product since a day (inclusive),
// oldest first.
func (s *Store) HistoryForProduct(ctx context.Context, slug, sinceDay string) ([]HistorySample, error) {
	return s.queryHistory(ctx,
		`SELECT product_slug, region, day, price, currency, in_stock
		 FROM price_history WHERE product_slug = ? AND day >= ?
		 ORDER BY region, day`, slug, sinceDay)
}

// HistoryForType bulk-loads history for every published product of a type,
// keyed by product slug, oldest first within each product.
func (s *Store) HistoryForType(ctx context.Context, ptype, sinceDay string) (map[string][]HistorySample, error) {
	samples, err := s.queryHistory(ctx,
		`SELECT h.product_slug, h.region, h.day, h.price, h.currency, h.in_stock
		 FROM price_history h JOIN products p ON p.slug = h.product_slug
		 WHERE p.type = ? AND p.published = 1 AND h.day >= ?
		 ORDER BY h.product_slug, h.region, h.day`, ptype, sinceDay)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]HistorySample)
	for _, h := range samples {
		out[h.ProductSlug] = append(out[h.ProductSlug], h)
	}
	return out, nil
}

// PruneHistory drops samples older than the retention cutoff day.
func (s *Store) PruneHistory(ctx context.Context, beforeDay string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM price_history WHERE day < ?`, beforeDay)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) queryHistory(ctx context.Context, q string, args ...any) ([]HistorySample, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistorySample
	for rows.Next() {
		var (
			h       HistorySample
			inStock int
		)
		if err := rows.Scan(&h.ProductSlug, &h.Region, &h.Day, &h.Price, &h.Currency, &inStock); err != nil {
			return nil, err
		}
		h.InStock = inStock != 0
		out = append(out, h)
	}
	return out, rows.Err()
}

// SinceDay returns the day key n days before now.
func SinceDay(now time.Time, days int) string {
	return Day(now.AddDate(0, 0, -days))
}
