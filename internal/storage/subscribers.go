package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// CreateSubscriber inserts an unconfirmed newsletter recipient. Only live
// rows count for uniqueness: an address that unsubscribed can sign up again.
func (s *Store) CreateSubscriber(ctx context.Context, sub Subscriber) (Subscriber, error) {
	if sub.Token == "" || sub.Email == "" {
		return Subscriber{}, errors.New("subscriber needs token and email")
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers(token, email, confirmed, active, created_at)
		 VALUES(?,?,?,1,?)`,
		sub.Token, strings.ToLower(sub.Email), boolInt(sub.Confirmed), timeStr(sub.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Subscriber{}, ErrDuplicate
		}
		return Subscriber{}, err
	}
	sub.ID, _ = res.LastInsertId()
	sub.Active = true
	return sub, nil
}

func (s *Store) ConfirmSubscriber(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscribers SET confirmed = 1 WHERE token = ? AND active = 1`, token)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) DeactivateSubscriber(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE subscribers SET active = 0 WHERE token = ?`, token)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveSubscribers returns confirmed, active newsletter recipients.
func (s *Store) ActiveSubscribers(ctx context.Context) ([]Subscriber, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, token, email, confirmed, active, created_at
		 FROM subscribers WHERE active = 1 AND confirmed = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Subscriber
	for rows.Next() {
		var (
			sub       Subscriber
			confirmed int
			active    int
			created   sql.NullString
		)
		if err := rows.Scan(&sub.ID, &sub.Token, &sub.Email, &confirmed, &active, &created); err != nil {
			return nil, err
		}
		sub.Confirmed = confirmed != 0
		sub.Active = active != 0
		sub.CreatedAt = parseTime(created)
		out = append(out, sub)
	}
	return out, rows.Err()
}
