package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/farmaline-dev/farmaline/internal/platform/domain"
	"github.com/farmaline-dev/farmaline/pkg/idx"
)

type alertsRepo struct {
	q querier
}

func (r *alertsRepo) Create(ctx context.Context, a domain.SecurityAlert) error {
	id := a.ID
	if id.IsZero() {
		id = idx.New()
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO security_alerts (id, rule, identity_id, ip, severity, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id.String(), a.Rule, mapOptionalInt64(a.IdentityID), a.IP, a.Severity, a.Detail,
		toMillis(createdAt))
	return err
}

func (r *alertsRepo) ExistsSince(ctx context.Context, rule string, identityID *int64, ip string, since time.Time) (bool, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM security_alerts
		 WHERE rule = ? AND IFNULL(identity_id, -1) = IFNULL(?, -1) AND ip = ? AND created_at >= ?`,
		rule, mapOptionalInt64(identityID), ip, toMillis(since)).
		Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *alertsRepo) ListRecent(ctx context.Context, limit int) ([]domain.SecurityAlert, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, rule, identity_id, ip, severity, detail, created_at
		 FROM security_alerts ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SecurityAlert
	for rows.Next() {
		var (
			a        domain.SecurityAlert
			id       string
			identity sql.NullInt64
			created  int64
		)
		if err := rows.Scan(&id, &a.Rule, &identity, &a.IP, &a.Severity, &a.Detail, &created); err != nil {
			return nil, err
		}
		a.ID = idx.ID(id)
		a.IdentityID = mapNullInt64Ptr(identity)
		a.CreatedAt = fromMillis(created)
		out = append(out, a)
	}
	return out, rows.Err()
}
