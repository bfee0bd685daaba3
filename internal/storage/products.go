package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// UpsertProduct inserts or updates a catalog entry keyed by slug.
func (s *Store) UpsertProduct(ctx context.Context, p Product) error {
	if p.Slug == "" {
		return errors.New("product slug is required")
	}
	specs, err := json.Marshal(p.Specs)
	if err != nil {
		return fmt.Errorf("marshal specs: %w", err)
	}
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO products(slug, type, title, brand, score, specs, image, published, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(slug) DO UPDATE SET
		   type=excluded.type, title=excluded.title, brand=excluded.brand,
		   score=excluded.score, specs=excluded.specs, image=excluded.image,
		   published=excluded.published, updated_at=excluded.updated_at`,
		p.Slug, p.Type, p.Title, p.Brand, p.Score, string(specs), nullStr(p.Image),
		boolInt(p.Published), timeStr(p.CreatedAt), timeStr(now),
	)
	return err
}

// Product returns one catalog entry, or ErrNotFound.
func (s *Store) Product(ctx context.Context, slug string) (Product, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT slug, type, title, brand, score, specs, image, published, created_at, updated_at
		 FROM products WHERE slug = ?`, slug)
	return scanProduct(row)
}

// Products lists published catalog entries, optionally filtered by type.
func (s *Store) Products(ctx context.Context, ptype string) ([]Product, error) {
	q := `SELECT slug, type, title, brand, score, specs, image, published, created_at, updated_at
	      FROM products WHERE published = 1`
	args := []any{}
	if ptype != "" {
		q += ` AND type = ?`
		args = append(args, ptype)
	}
	q += ` ORDER BY slug`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ProductTypes returns the distinct types that have published products.
func (s *Store) ProductTypes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT type FROM products WHERE published = 1 ORDER BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteProduct removes a product; offers, history, cache rows and trackers
// cascade.
func (s *Store) DeleteProduct(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE slug = ?`, slug)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(r rowScanner) (Product, error) {
	var (
		p         Product
		specs     string
		image     sql.NullString
		published int
		created   sql.NullString
		updated   sql.NullString
	)
	err := r.Scan(&p.Slug, &p.Type, &p.Title, &p.Brand, &p.Score, &specs, &image, &published, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, err
	}
	if err := json.Unmarshal([]byte(specs), &p.Specs); err != nil {
		return Product{}, fmt.Errorf("product %s: bad specs json: %w", p.Slug, err)
	}
	p.Image = image.String
	p.Published = published != 0
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return p, nil
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
