package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

const defaultTrackerCooldown = 72 * time.Hour

// CreateTracker inserts an unconfirmed tracker. A second live tracker for the
// same (email, product, region, kind) returns ErrDuplicate; deactivated rows
// do not block re-creation.
func (s *Store) CreateTracker(ctx context.Context, t Tracker) (Tracker, error) {
	if t.Token == "" || t.Email == "" || t.ProductSlug == "" || t.Region == "" {
		return Tracker{}, errors.New("tracker needs token, email, product and region")
	}
	switch t.Kind {
	case TrackerKindTarget:
	case TrackerKindDrop:
		// A drop tracker without a baseline can never fire.
		if t.BaselinePrice <= 0 {
			return Tracker{}, errors.New("drop tracker needs a baseline price")
		}
	default:
		return Tracker{}, errors.New("tracker kind must be target or drop")
	}
	if t.Cooldown <= 0 {
		t.Cooldown = defaultTrackerCooldown
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO trackers(token, email, product_slug, region, kind, target_price, drop_percent,
		                      baseline_price, cooldown_sec, confirmed, active, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?,1,?)`,
		t.Token, strings.ToLower(t.Email), t.ProductSlug, t.Region, t.Kind,
		t.TargetPrice, t.DropPercent, t.BaselinePrice, int64(t.Cooldown.Seconds()),
		boolInt(t.Confirmed), timeStr(t.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return Tracker{}, ErrDuplicate
		}
		return Tracker{}, err
	}
	t.ID, _ = res.LastInsertId()
	t.Active = true
	return t, nil
}

// ConfirmTracker flips the confirmed flag for the token. ErrNotFound when the
// token is unknown or the tracker was deactivated.
func (s *Store) ConfirmTracker(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE trackers SET confirmed = 1 WHERE token = ? AND active = 1`, token)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeactivateTracker turns a tracker off (unsubscribe link).
func (s *Store) DeactivateTracker(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE trackers SET active = 0 WHERE token = ?`, token)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// LiveTrackers returns confirmed, active trackers. The notify job scans these
// against the current regional prices.
func (s *Store) LiveTrackers(ctx context.Context) ([]Tracker, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, token, email, product_slug, region, kind, target_price, drop_percent,
		        baseline_price, cooldown_sec, last_notified, confirmed, active, created_at
		 FROM trackers WHERE active = 1 AND confirmed = 1 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tracker
	for rows.Next() {
		var (
			t           Tracker
			cooldownSec int64
			notified    sql.NullString
			confirmed   int
			active      int
			created     sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.Token, &t.Email, &t.ProductSlug, &t.Region, &t.Kind,
			&t.TargetPrice, &t.DropPercent, &t.BaselinePrice, &cooldownSec,
			&notified, &confirmed, &active, &created); err != nil {
			return nil, err
		}
		t.Cooldown = time.Duration(cooldownSec) * time.Second
		t.LastNotified = parseTime(notified)
		t.Confirmed = confirmed != 0
		t.Active = active != 0
		t.CreatedAt = parseTime(created)
		out = append(out, t)
	}
	return out, rows.Err()
}

// MarkTrackerNotified stamps last_notified after an alert email was queued.
func (s *Store) MarkTrackerNotified(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE trackers SET last_notified = ? WHERE id = ?`, timeStr(at), id)
	return err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// modernc.org/sqlite reports constraint failures in the message; there is
	// no exported error code type shared with database/sql.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "constraint failed")
}
