package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/farmaline-dev/farmaline/internal/platform/domain"
	"github.com/farmaline-dev/farmaline/internal/platform/store"
	"github.com/farmaline-dev/farmaline/pkg/idx"
)

type attemptsRepo struct {
	q querier
}

func (r *attemptsRepo) Create(ctx context.Context, a domain.LoginAttempt) error {
	id := a.ID
	if id.IsZero() {
		id = idx.New()
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO login_attempts (id, identity_id, identifier, success, reason, ip, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id.String(), mapOptionalInt64(a.IdentityID), a.Identifier, a.Success, a.Reason, a.IP,
		toMillis(createdAt))
	return err
}

// CountRecentFailures counts failures inside the window but after the latest
// success, so one good login resets the budget without deleting history.
// Always computed from the ledger, never from a cached counter.
func (r *attemptsRepo) CountRecentFailures(ctx context.Context, identityID int64, since time.Time) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM login_attempts
		 WHERE identity_id = ? AND success = 0 AND created_at >= ?
		   AND created_at > COALESCE(
			 (SELECT MAX(created_at) FROM login_attempts WHERE identity_id = ? AND success = 1), 0)`,
		identityID, toMillis(since), identityID).
		Scan(&count)
	return count, err
}

func (r *attemptsRepo) FailureCountsByIdentity(ctx context.Context, since time.Time) ([]store.FailureCount, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT identity_id, COUNT(*) FROM login_attempts
		 WHERE success = 0 AND created_at >= ? AND identity_id IS NOT NULL
		 GROUP BY identity_id`,
		toMillis(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.FailureCount
	for rows.Next() {
		var fc store.FailureCount
		if err := rows.Scan(&fc.IdentityID, &fc.Count); err != nil {
			return nil, err
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}

func (r *attemptsRepo) FailureCountsByIP(ctx context.Context, since time.Time) ([]store.IPFailureCount, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT ip, COUNT(*), COUNT(DISTINCT identifier) FROM login_attempts
		 WHERE success = 0 AND created_at >= ? AND ip <> ''
		 GROUP BY ip`,
		toMillis(since))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.IPFailureCount
	for rows.Next() {
		var fc store.IPFailureCount
		if err := rows.Scan(&fc.IP, &fc.Count, &fc.DistinctIdentifiers); err != nil {
			return nil, err
		}
		out = append(out, fc)
	}
	return out, rows.Err()
}

func (r *attemptsRepo) ListRecent(ctx context.Context, limit int) ([]domain.LoginAttempt, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, identity_id, identifier, success, reason, ip, created_at
		 FROM login_attempts ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.LoginAttempt
	for rows.Next() {
		var (
			a        domain.LoginAttempt
			id       string
			identity sql.NullInt64
			created  int64
		)
		if err := rows.Scan(&id, &identity, &a.Identifier, &a.Success, &a.Reason, &a.IP, &created); err != nil {
			return nil, err
		}
		a.ID = idx.ID(id)
		a.IdentityID = mapNullInt64Ptr(identity)
		a.CreatedAt = fromMillis(created)
		out = append(out, a)
	}
	return out, rows.Err()
}
