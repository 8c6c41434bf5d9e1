package store

import (
	"context"
	"errors"
	"time"

	"github.com/farmaline-dev/farmaline/internal/platform/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. Sub-repositories keep concerns tidy and let services take
// just the slice they need in tests.
type Store interface {
	Identities() Identities
	TwoFactor() TwoFactor
	Attempts() Attempts
	Audit() Audit
	Alerts() Alerts

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction, committing when fn returns nil
	// and rolling back otherwise. Prefer this over Tx.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. Same repos plus Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

// Identities is the credential store adapter. The identity records themselves
// are owned by the customer/staff management side; the authentication core
// reads them and may toggle the lock flag.
type Identities interface {
	// GetByID returns an identity by numeric id.
	GetByID(ctx context.Context, id int64) (domain.Identity, error)

	// FindByIdentifier resolves a login identifier, matching either the
	// email or the national id.
	FindByIdentifier(ctx context.Context, identifier string) (domain.Identity, error)

	// Create inserts a new identity and returns its assigned id.
	Create(ctx context.Context, ident domain.Identity) (int64, error)

	// SetLocked flips the operator lock flag.
	SetLocked(ctx context.Context, id int64, locked bool) error
}

// TwoFactor persists TOTP credentials and their backup codes.
type TwoFactor interface {
	// Get returns the credential for an identity, ErrNotFound if none.
	Get(ctx context.Context, identityID int64) (domain.TwoFactorCredential, error)

	// Create inserts a new, not-yet-activated credential. Fails with
	// ErrAlreadyExists while a credential row is present.
	Create(ctx context.Context, cred domain.TwoFactorCredential) error

	// Replace swaps the secret on an existing, deactivated credential.
	Replace(ctx context.Context, cred domain.TwoFactorCredential) error

	// Activate stamps the credential as verified by its holder.
	Activate(ctx context.Context, identityID int64) error

	// Deactivate clears the activation stamp but keeps the row.
	Deactivate(ctx context.Context, identityID int64) error

	// CreateBackupCode stores one backup code fingerprint.
	CreateBackupCode(ctx context.Context, identityID int64, codeHash string) error

	// ConsumeBackupCode deletes a matching fingerprint and reports whether
	// one was present. The delete is atomic, so a code spends exactly once
	// even under concurrent submissions.
	ConsumeBackupCode(ctx context.Context, identityID int64, codeHash string) (bool, error)

	// DeleteBackupCodes removes all backup codes for an identity.
	DeleteBackupCodes(ctx context.Context, identityID int64) error

	// CountBackupCodes returns how many unused codes remain.
	CountBackupCodes(ctx context.Context, identityID int64) (int, error)
}

// FailureCount is a per-identity failure aggregate for the alert monitor.
type FailureCount struct {
	IdentityID int64
	Count      int
}

// IPFailureCount is a per-IP failure aggregate for the alert monitor.
type IPFailureCount struct {
	IP                  string
	Count               int
	DistinctIdentifiers int
}

// Attempts is the append-only login attempt ledger.
type Attempts interface {
	// Create appends one attempt row.
	Create(ctx context.Context, a domain.LoginAttempt) error

	// CountRecentFailures counts failures for an identity since the given
	// time, ignoring anything at or before the identity's latest successful
	// attempt. Recomputed from the ledger on every call so concurrent logins
	// never work from a stale counter.
	CountRecentFailures(ctx context.Context, identityID int64, since time.Time) (int, error)

	// FailureCountsByIdentity aggregates failures per identity since a time.
	FailureCountsByIdentity(ctx context.Context, since time.Time) ([]FailureCount, error)

	// FailureCountsByIP aggregates failures per source IP since a time,
	// including how many distinct identifiers each IP has tried.
	FailureCountsByIP(ctx context.Context, since time.Time) ([]IPFailureCount, error)

	// ListRecent returns the newest attempts, most recent first.
	ListRecent(ctx context.Context, limit int) ([]domain.LoginAttempt, error)
}

// Audit is the append-only audit ledger.
type Audit interface {
	// Create appends one audit record.
	Create(ctx context.Context, rec domain.AuditRecord) error

	// List returns records matching the query, most recent first.
	List(ctx context.Context, q domain.AuditQuery) ([]domain.AuditRecord, error)

	// CountsByIdentity aggregates records per identity since a time.
	CountsByIdentity(ctx context.Context, since time.Time) ([]FailureCount, error)
}

// Alerts stores the monitor's findings.
type Alerts interface {
	// Create appends one alert.
	Create(ctx context.Context, a domain.SecurityAlert) error

	// ExistsSince reports whether an alert with the same rule and subject
	// was already raised since the given time. Used for deduplication.
	ExistsSince(ctx context.Context, rule string, identityID *int64, ip string, since time.Time) (bool, error)

	// ListRecent returns the newest alerts, most recent first.
	ListRecent(ctx context.Context, limit int) ([]domain.SecurityAlert, error)
}
