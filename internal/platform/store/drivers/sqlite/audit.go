package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/farmaline-dev/farmaline/internal/platform/domain"
	"github.com/farmaline-dev/farmaline/internal/platform/store"
	"github.com/farmaline-dev/farmaline/pkg/idx"
)

type auditRepo struct {
	q querier
}

func (r *auditRepo) Create(ctx context.Context, rec domain.AuditRecord) error {
	id := rec.ID
	if id.IsZero() {
		id = idx.New()
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO audit_records (id, identity_id, name, email, role, action, description, ip, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), mapOptionalInt64(rec.IdentityID), rec.Name, rec.Email, rec.Role,
		rec.Action, rec.Description, rec.IP, toMillis(createdAt))
	return err
}

func (r *auditRepo) List(ctx context.Context, q domain.AuditQuery) ([]domain.AuditRecord, error) {
	query := `SELECT id, identity_id, name, email, role, action, description, ip, created_at
		 FROM audit_records WHERE 1=1`
	args := make([]any, 0, 4)

	if q.IdentityID != nil {
		query += ` AND identity_id = ?`
		args = append(args, *q.IdentityID)
	}
	if !q.From.IsZero() {
		query += ` AND created_at >= ?`
		args = append(args, toMillis(q.From))
	}
	if !q.To.IsZero() {
		query += ` AND created_at < ?`
		args = append(args, toMillis(q.To))
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditRecord
	for rows.Next() {
		var (
			rec      domain.AuditRecord
			id       string
			identity sql.NullInt64
			created  int64
		)
		if err := rows.Scan(&id, &identity, &rec.Name, &rec.Email, &rec.Role,
			&rec.Action, &rec.Description, &rec.IP, &created); err != nil {
			return nil, err
		}
		rec.ID = idx.ID(id)
		rec.IdentityID = mapNullInt64Ptr(identity)
		rec.CreatedAt = fromMillis(created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *auditRepo) CountsByIdentity(ctx context.Context, since time.Time) ([]store.FailureCount, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT identity_id, COUNT(*) FROM audit_records
		 WHERE created_at >= ? AND identity_id IS NOT NULL
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
