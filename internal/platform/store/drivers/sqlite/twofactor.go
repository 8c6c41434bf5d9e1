package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/farmaline-dev/farmaline/internal/platform/domain"
)

type twoFactorRepo struct {
	q querier
}

func (r *twoFactorRepo) Get(ctx context.Context, identityID int64) (domain.TwoFactorCredential, error) {
	var (
		cred      domain.TwoFactorCredential
		activated sql.NullInt64
		created   int64
	)
	err := r.q.QueryRowContext(ctx,
		`SELECT identity_id, secret, activated_at, created_at
		 FROM two_factor_credentials WHERE identity_id = ?`, identityID).
		Scan(&cred.IdentityID, &cred.Secret, &activated, &created)
	if err != nil {
		return domain.TwoFactorCredential{}, mapNotFound(err)
	}
	cred.ActivatedAt = mapNullMillisPtr(activated)
	cred.CreatedAt = fromMillis(created)
	return cred, nil
}

func (r *twoFactorRepo) Create(ctx context.Context, cred domain.TwoFactorCredential) error {
	createdAt := cred.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO two_factor_credentials (identity_id, secret, activated_at, created_at)
		 VALUES (?, ?, ?, ?)`,
		cred.IdentityID, cred.Secret, mapOptionalMillis(cred.ActivatedAt), toMillis(createdAt))
	return mapConstraint(err)
}

func (r *twoFactorRepo) Replace(ctx context.Context, cred domain.TwoFactorCredential) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE two_factor_credentials
		 SET secret = ?, activated_at = NULL, created_at = ?
		 WHERE identity_id = ? AND activated_at IS NULL`,
		cred.Secret, toMillis(time.Now()), cred.IdentityID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *twoFactorRepo) Activate(ctx context.Context, identityID int64) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE two_factor_credentials SET activated_at = ? WHERE identity_id = ?`,
		toMillis(time.Now()), identityID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *twoFactorRepo) Deactivate(ctx context.Context, identityID int64) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE two_factor_credentials SET activated_at = NULL WHERE identity_id = ?`,
		identityID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (r *twoFactorRepo) CreateBackupCode(ctx context.Context, identityID int64, codeHash string) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO two_factor_backup_codes (identity_id, code_hash, created_at)
		 VALUES (?, ?, ?)`,
		identityID, codeHash, toMillis(time.Now()))
	return mapConstraint(err)
}

func (r *twoFactorRepo) ConsumeBackupCode(ctx context.Context, identityID int64, codeHash string) (bool, error) {
	// Single DELETE makes the consume atomic: two concurrent submissions of
	// the same code race on the row and only one sees it.
	res, err := r.q.ExecContext(ctx,
		`DELETE FROM two_factor_backup_codes WHERE identity_id = ? AND code_hash = ?`,
		identityID, codeHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *twoFactorRepo) DeleteBackupCodes(ctx context.Context, identityID int64) error {
	_, err := r.q.ExecContext(ctx,
		`DELETE FROM two_factor_backup_codes WHERE identity_id = ?`, identityID)
	return err
}

func (r *twoFactorRepo) CountBackupCodes(ctx context.Context, identityID int64) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM two_factor_backup_codes WHERE identity_id = ?`, identityID).
		Scan(&count)
	return count, err
}
