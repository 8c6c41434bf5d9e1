package domain

import "time"

// TwoFactorCredential is the per-identity TOTP enrollment. At most one row
// exists per identity; deactivation clears the activation timestamp but keeps
// the row so re-enrollment replaces the secret explicitly.
type TwoFactorCredential struct {
	IdentityID  int64
	Secret      string     // base32 TOTP secret, only ever returned at enrollment
	ActivatedAt *time.Time // nil until the holder proves possession with a live code
	CreatedAt   time.Time
}

// Active reports whether the credential must be satisfied during login.
func (c TwoFactorCredential) Active() bool {
	return c.ActivatedAt != nil
}

// TwoFactorEnrollment is returned once, at enrollment time. The secret and the
// plaintext backup codes are never retrievable again.
type TwoFactorEnrollment struct {
	Secret          string   // base32 secret for manual entry
	ProvisioningURL string   // otpauth:// URL renderable as a QR code
	Issuer          string
	Account         string
	BackupCodes     []string // single-use fallback codes, shown exactly once
}
