package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// UpsertCacheRow replaces the denormalized price row for (product, region).
func (s *Store) UpsertCacheRow(ctx context.Context, r CacheRow) error {
	if r.ProductSlug == "" || r.Region == "" {
		return errors.New("cache row needs product and region")
	}
	if r.RebuiltAt.IsZero() {
		r.RebuiltAt = time.Now()
	}
	if r.StatsJSON == "" {
		r.StatsJSON = "{}"
	}
	if r.MetricsJSON == "" {
		r.MetricsJSON = "{}"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO price_cache(product_slug, region, price, currency, retailer, url, in_stock, stats, metrics, rebuilt_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(product_slug, region) DO UPDATE SET
		   price=excluded.price, currency=excluded.currency, retailer=excluded.retailer,
		   url=excluded.url, in_stock=excluded.in_stock, stats=excluded.stats,
		   metrics=excluded.metrics, rebuilt_at=excluded.rebuilt_at`,
		r.ProductSlug, r.Region, r.Price, r.Currency, r.Retailer, nullStr(r.URL),
		boolInt(r.InStock), r.StatsJSON, r.MetricsJSON, timeStr(r.RebuiltAt),
	)
	return err
}

// DeleteCacheRows removes cache rows for a product that no longer has a price
// in the given regions. Passing nil removes all rows for the product.
func (s *Store) DeleteCacheRows(ctx context.Context, slug string, regions []string) error {
	if regions == nil {
		_, err := s.db.ExecContext(ctx, `DELETE FROM price_cache WHERE product_slug = ?`, slug)
		return err
	}
	for _, region := range regions {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM price_cache WHERE product_slug = ? AND region = ?`, slug, region); err != nil {
			return err
		}
	}
	return nil
}

// CacheRow returns the cached price for one (product, region), or ErrNotFound.
func (s *Store) CacheRow(ctx context.Context, slug, region string) (CacheRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT product_slug, region, price, currency, retailer, url, in_stock, stats, metrics, rebuilt_at
		 FROM price_cache WHERE product_slug = ? AND region = ?`, slug, region)
	return scanCacheRow(row)
}

// CacheRowsForProduct returns all regional rows for one product.
func (s *Store) CacheRowsForProduct(ctx context.Context, slug string) ([]CacheRow, error) {
	return s.queryCacheRows(ctx,
		`SELECT product_slug, region, price, currency, retailer, url, in_stock, stats, metrics, rebuilt_at
		 FROM price_cache WHERE product_slug = ? ORDER BY region`, slug)
}

// CacheRows returns every cached row, keyed by product slug. The export job
// reads the whole table at once.
func (s *Store) CacheRows(ctx context.Context) (map[string][]CacheRow, error) {
	rows, err := s.queryCacheRows(ctx,
		`SELECT product_slug, region, price, currency, retailer, url, in_stock, stats, metrics, rebuilt_at
		 FROM price_cache ORDER BY product_slug, region`)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]CacheRow)
	for _, r := range rows {
		out[r.ProductSlug] = append(out[r.ProductSlug], r)
	}
	return out, nil
}

func (s *Store) queryCacheRows(ctx context.Context, q string, args ...any) ([]CacheRow, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CacheRow
	for rows.Next() {
		r, err := scanCacheRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanCacheRow(r rowScanner) (CacheRow, error) {
	var (
		row     CacheRow
		url     sql.NullString
		inStock int
		rebuilt sql.NullString
	)
	err := r.Scan(&row.ProductSlug, &row.Region, &row.Price, &row.Currency, &row.Retailer,
		&url, &inStock, &row.StatsJSON, &row.MetricsJSON, &rebuilt)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheRow{}, ErrNotFound
	}
	if err != nil {
		return CacheRow{}, err
	}
	row.URL = url.String
	row.InStock = inStock != 0
	row.RebuiltAt = parseTime(rebuilt)
	return row, nil
}
