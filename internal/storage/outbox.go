package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// EnqueueEmail adds a pending message to the outbox. NextAttempt defaults to
// now (deliver on the next dispatch run).
func (s *Store) EnqueueEmail(ctx context.Context, e OutboxEmail) (int64, error) {
	if e.Recipient == "" || e.Subject == "" {
		return 0, errors.New("outbox email needs recipient and subject")
	}
	now := time.Now()
	if e.NextAttempt.IsZero() {
		e.NextAttempt = now
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO email_outbox(recipient, subject, body, status, attempts, next_attempt, created_at)
		 VALUES(?,?,?,?,0,?,?)`,
		e.Recipient, e.Subject, e.Body, OutboxPending, timeStr(e.NextAttempt), timeStr(e.CreatedAt),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// DueEmails returns pending messages whose next_attempt has passed, oldest
// first, capped at limit.
func (s *Store) DueEmails(ctx context.Context, now time.Time, limit int) ([]OutboxEmail, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recipient, subject, body, status, attempts, next_attempt, last_error, created_at, sent_at
		 FROM email_outbox
		 WHERE status = ? AND next_attempt <= ?
		 ORDER BY next_attempt LIMIT ?`,
		OutboxPending, timeStr(now), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutboxEmail
	for rows.Next() {
		var (
			e       OutboxEmail
			next    sql.NullString
			lastErr sql.NullString
			created sql.NullString
			sent    sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Recipient, &e.Subject, &e.Body, &e.Status,
			&e.Attempts, &next, &lastErr, &created, &sent); err != nil {
			return nil, err
		}
		e.NextAttempt = parseTime(next)
		e.LastError = lastErr.String
		e.CreatedAt = parseTime(created)
		e.SentAt = parseTime(sent)
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkEmailSent finalizes a delivered message.
func (s *Store) MarkEmailSent(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE email_outbox SET status = ?, sent_at = ?, last_error = NULL,
		        attempts = attempts + 1
		 WHERE id = ?`,
		OutboxSent, timeStr(at), id)
	return err
}

// MarkEmailFailed records a failed attempt. When exhausted is true the message
// is parked as failed; otherwise it stays pending with the given next attempt.
func (s *Store) MarkEmailFailed(ctx context.Context, id int64, sendErr string, nextAttempt time.Time, exhausted bool) error {
	status := OutboxPending
	if exhausted {
		status = OutboxFailed
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE email_outbox SET status = ?, attempts = attempts + 1,
		        next_attempt = ?, last_error = ?
		 WHERE id = ?`,
		status, timeStr(nextAttempt), nullStr(sendErr), id)
	return err
}

// PruneOutbox removes sent/failed rows older than the cutoff.
func (s *Store) PruneOutbox(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM email_outbox WHERE status != ? AND created_at < ?`,
		OutboxPending, timeStr(before))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
