package sqlite

import (
	"context"
	"time"

	"github.com/farmaline-dev/farmaline/internal/platform/domain"
)

type identitiesRepo struct {
	q querier
}

const identityColumns = `id, name, email, national_id, role, password_hash, locked, created_at, updated_at`

func (r *identitiesRepo) scanIdentity(row interface{ Scan(...any) error }) (domain.Identity, error) {
	var (
		ident            domain.Identity
		created, updated int64
	)
	err := row.Scan(
		&ident.ID,
		&ident.Name,
		&ident.Email,
		&ident.NationalID,
		&ident.Role,
		&ident.PasswordHash,
		&ident.Locked,
		&created,
		&updated,
	)
	if err != nil {
		return domain.Identity{}, mapNotFound(err)
	}
	ident.CreatedAt = fromMillis(created)
	ident.UpdatedAt = fromMillis(updated)
	return ident, nil
}

func (r *identitiesRepo) GetByID(ctx context.Context, id int64) (domain.Identity, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = ?`, id)
	return r.scanIdentity(row)
}

func (r *identitiesRepo) FindByIdentifier(ctx context.Context, identifier string) (domain.Identity, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = ? OR national_id = ?`,
		identifier, identifier)
	return r.scanIdentity(row)
}

func (r *identitiesRepo) Create(ctx context.Context, ident domain.Identity) (int64, error) {
	now := toMillis(time.Now())
	res, err := r.q.ExecContext(ctx,
		`INSERT INTO identities (name, email, national_id, role, password_hash, locked, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ident.Name, ident.Email, ident.NationalID, ident.Role, ident.PasswordHash, ident.Locked, now, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r *identitiesRepo) SetLocked(ctx context.Context, id int64, locked bool) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE identities SET locked = ?, updated_at = ? WHERE id = ?`,
		locked, toMillis(time.Now()), id)
	return err
}
