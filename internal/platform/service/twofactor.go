package service

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/farmaline-dev/farmaline/internal/platform/domain"
	"github.com/farmaline-dev/farmaline/internal/platform/store"
	"github.com/farmaline-dev/farmaline/pkg/cryptox"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	backupCodeCount = 10                   // Number of backup codes issued on enrollment
	backupCodeBytes = cryptox.TokenSize128 // 128-bit entropy per backup code

	secretBytes = 20 // RFC 4226 recommended secret length
)

var (
	ErrTwoFactorNotEnrolled   = errors.New("two-factor authentication not enrolled")
	ErrTwoFactorAlreadyActive = errors.New("two-factor authentication already active")
	ErrTwoFactorNotActive     = errors.New("two-factor authentication not active")
	ErrInvalidTwoFactorCode   = errors.New("invalid two-factor code")
)

// TwoFactorService manages TOTP credentials and single-use backup codes.
// Enrollment is two-phase: Enroll stores a pending secret, Activate turns it
// on once the caller proves they can produce a valid code for it.
type TwoFactorService struct {
	Store  store.Store
	Issuer string // Issuer label shown in authenticator apps
	Period uint   // TOTP step in seconds, 30 if zero
	Skew   uint   // Accepted steps either side of now, 1 if zero
}

func (s *TwoFactorService) period() uint {
	if s.Period == 0 {
		return 30
	}
	return s.Period
}

func (s *TwoFactorService) skew() uint {
	if s.Skew == 0 {
		return 1
	}
	return s.Skew
}

// Enroll generates a fresh TOTP secret and backup codes for the identity.
// The credential stays inactive until Activate succeeds, so login is not
// affected by an abandoned enrollment. Re-enrolling replaces a pending
// secret but is rejected while a credential is active.
func (s *TwoFactorService) Enroll(ctx context.Context, identity domain.Identity) (domain.TwoFactorEnrollment, error) {
	existing, err := s.Store.TwoFactor().Get(ctx, identity.ID)
	switch {
	case err == nil:
		if existing.Active() {
			return domain.TwoFactorEnrollment{}, ErrTwoFactorAlreadyActive
		}
	case errors.Is(err, store.ErrNotFound):
		// First enrollment
	default:
		return domain.TwoFactorEnrollment{}, fmt.Errorf("failed to load two-factor credential: %w", err)
	}

	secret, err := GenerateTOTPSecret()
	if err != nil {
		return domain.TwoFactorEnrollment{}, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}

	backupCodes := make([]string, backupCodeCount)
	for i := range backupCodeCount {
		code, err := cryptox.GenerateToken(backupCodeBytes)
		if err != nil {
			return domain.TwoFactorEnrollment{}, fmt.Errorf("failed to generate backup code: %w", err)
		}
		backupCodes[i] = code
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		cred := domain.TwoFactorCredential{
			IdentityID: identity.ID,
			Secret:     secret,
			CreatedAt:  time.Now().UTC(),
		}

		if existing.IdentityID != 0 {
			if err := tx.TwoFactor().Replace(ctx, cred); err != nil {
				return fmt.Errorf("failed to replace pending credential: %w", err)
			}
		} else {
			if err := tx.TwoFactor().Create(ctx, cred); err != nil {
				return fmt.Errorf("failed to store credential: %w", err)
			}
		}

		// Codes from a previous pending enrollment are no longer redeemable.
		if err := tx.TwoFactor().DeleteBackupCodes(ctx, identity.ID); err != nil {
			return fmt.Errorf("failed to clear backup codes: %w", err)
		}

		for _, code := range backupCodes {
			hash := cryptox.FingerprintToken(code)
			if err := tx.TwoFactor().CreateBackupCode(ctx, identity.ID, hash); err != nil {
				return fmt.Errorf("failed to store backup code: %w", err)
			}
		}

		return nil
	})
	if err != nil {
		return domain.TwoFactorEnrollment{}, err
	}

	return domain.TwoFactorEnrollment{
		Secret:          secret,
		ProvisioningURL: s.ProvisioningURL(secret, identity.Email),
		Issuer:          s.Issuer,
		Account:         identity.Email,
		BackupCodes:     backupCodes,
	}, nil
}

// Activate turns on a pending credential once the caller presents a valid
// code generated from its secret.
func (s *TwoFactorService) Activate(ctx context.Context, identityID int64, code string) error {
	cred, err := s.Store.TwoFactor().Get(ctx, identityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTwoFactorNotEnrolled
		}
		return fmt.Errorf("failed to load two-factor credential: %w", err)
	}

	if cred.Active() {
		return ErrTwoFactorAlreadyActive
	}

	if !s.ValidateCode(code, cred.Secret) {
		return ErrInvalidTwoFactorCode
	}

	if err := s.Store.TwoFactor().Activate(ctx, identityID); err != nil {
		return fmt.Errorf("failed to activate credential: %w", err)
	}

	return nil
}

// Deactivate turns off an active credential and deletes all remaining backup
// codes. The secret stays pending, so re-activation needs a fresh Activate.
// The caller must present a currently valid TOTP code or an unused backup code.
func (s *TwoFactorService) Deactivate(ctx context.Context, identityID int64, code string) error {
	cred, err := s.Store.TwoFactor().Get(ctx, identityID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrTwoFactorNotActive
		}
		return fmt.Errorf("failed to load two-factor credential: %w", err)
	}

	if !cred.Active() {
		return ErrTwoFactorNotActive
	}

	if !s.ValidateCode(code, cred.Secret) {
		consumed, err := s.ConsumeBackupCode(ctx, identityID, code)
		if err != nil {
			return err
		}
		if !consumed {
			return ErrInvalidTwoFactorCode
		}
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.TwoFactor().DeleteBackupCodes(ctx, identityID); err != nil {
			return fmt.Errorf("failed to delete backup codes: %w", err)
		}
		if err := tx.TwoFactor().Deactivate(ctx, identityID); err != nil {
			return fmt.Errorf("failed to deactivate credential: %w", err)
		}
		return nil
	})
}

// ValidateCode checks a TOTP code against the given secret, accepting one
// step of clock skew either side of now.
func (s *TwoFactorService) ValidateCode(code, secret string) bool {
	valid, err := totp.ValidateCustom(code, secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    s.period(),
		Skew:      s.skew(),
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return valid
}

// ConsumeBackupCode redeems a backup code for the identity. Each code is
// single use; redeeming it deletes it, so a replayed code reports false.
func (s *TwoFactorService) ConsumeBackupCode(ctx context.Context, identityID int64, code string) (bool, error) {
	if code == "" {
		return false, nil
	}

	hash := cryptox.FingerprintToken(code)
	consumed, err := s.Store.TwoFactor().ConsumeBackupCode(ctx, identityID, hash)
	if err != nil {
		return false, fmt.Errorf("failed to consume backup code: %w", err)
	}
	return consumed, nil
}

// RemainingBackupCodes reports how many unused backup codes the identity has.
func (s *TwoFactorService) RemainingBackupCodes(ctx context.Context, identityID int64) (int, error) {
	return s.Store.TwoFactor().CountBackupCodes(ctx, identityID)
}

// ProvisioningURL builds the otpauth:// URL authenticator apps import.
func (s *TwoFactorService) ProvisioningURL(secret, account string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", s.Issuer)
	v.Set("algorithm", "SHA1")
	v.Set("digits", "6")
	v.Set("period", strconv.FormatUint(uint64(s.period()), 10))

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + s.Issuer + ":" + account,
		RawQuery: v.Encode(),
	}
	return u.String()
}

// GenerateTOTPSecret returns a new base32 encoded shared secret.
func GenerateTOTPSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}
