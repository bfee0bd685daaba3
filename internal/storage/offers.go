package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// UpsertOffer records the current price at one (retailer, country).
func (s *Store) UpsertOffer(ctx context.Context, o Offer) error {
	if o.ProductSlug == "" || o.Retailer == "" || o.Country == "" {
		return errors.New("offer needs product, retailer and country")
	}
	if o.CheckedAt.IsZero() {
		o.CheckedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO offers(product_slug, retailer, country, currency, price, in_stock, url, checked_at)
		 VALUES(?,?,?,?,?,?,?,?)
		 ON CONFLICT(product_slug, retailer, country) DO UPDATE SET
		   currency=excluded.currency, price=excluded.price, in_stock=excluded.in_stock,
		   url=excluded.url, checked_at=excluded.checked_at`,
		o.ProductSlug, o.Retailer, strings.ToUpper(o.Country), strings.ToUpper(o.Currency),
		o.Price, boolInt(o.InStock), nullStr(o.URL), timeStr(o.CheckedAt),
	)
	return err
}

// OffersForProduct returns all current offers for one product.
func (s *Store) OffersForProduct(ctx context.Context, slug string) ([]Offer, error) {
	return s.queryOffers(ctx,
		`SELECT product_slug, retailer, country, currency, price, in_stock, url, checked_at
		 FROM offers WHERE product_slug = ? ORDER BY retailer, country`, slug)
}

// OffersForType bulk-loads offers for every published product of a type,
// keyed by product slug. The cache rebuild job uses this instead of
// per-product queries.
func (s *Store) OffersForType(ctx context.Context, ptype string) (map[string][]Offer, error) {
	offers, err := s.queryOffers(ctx,
		`SELECT o.product_slug, o.retailer, o.country, o.currency, o.price, o.in_stock, o.url, o.checked_at
		 FROM offers o JOIN products p ON p.slug = o.product_slug
		 WHERE p.type = ? AND p.published = 1
		 ORDER BY o.product_slug, o.retailer`, ptype)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]Offer)
	for _, o := range offers {
		out[o.ProductSlug] = append(out[o.ProductSlug], o)
	}
	return out, nil
}

// PruneOffers drops offers that have not been refreshed since the cutoff
// (retailer dropped the product or the feed went away).
func (s *Store) PruneOffers(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM offers WHERE checked_at < ?`, timeStr(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) queryOffers(ctx context.Context, q string, args ...any) ([]Offer, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Offer
	for rows.Next() {
		var (
			o       Offer
			inStock int
			url     sql.NullString
			checked sql.NullString
		)
		if err := rows.Scan(&o.ProductSlug, &o.Retailer, &o.Country, &o.Currency, &o.Price, &inStock, &url, &checked); err != nil {
			return nil, err
		}
		o.InStock = inStock != 0
		o.URL = url.String
		o.CheckedAt = parseTime(checked)
		out = append(out, o)
	}
	return out, rows.Err()
}
