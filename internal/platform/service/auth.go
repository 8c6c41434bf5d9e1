package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/farmaline-dev/farmaline/internal/platform/domain"
	"github.com/farmaline-dev/farmaline/internal/platform/store"
	"github.com/farmaline-dev/farmaline/pkg/cryptox"
	"github.com/farmaline-dev/farmaline/pkg/jwtx"
)

const (
	// DefaultLockoutThreshold is the number of consecutive failures within
	// the lockout window after which logins are refused.
	DefaultLockoutThreshold = 5

	// DefaultLockoutWindow bounds how far back failures count toward lockout.
	DefaultLockoutWindow = 15 * time.Minute
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrTwoFactorRequired  = errors.New("two-factor code required")
)

// LoginInput carries everything a single login attempt needs. OTPCode is
// either a TOTP code or a backup code and may be empty when the identity has
// no active two-factor credential.
type LoginInput struct {
	Identifier string // email or national id
	Password   string
	OTPCode    string
	IP         string
}

// LoginResult is returned on a fully successful login.
type LoginResult struct {
	Token    string
	Claims   jwtx.Claims
	Identity domain.Identity
}

// AuthService validates credentials and issues session tokens. Every call to
// Login, success or failure, leaves exactly one row in the attempt ledger;
// the ledger is what the lockout check and the alert rules read.
type AuthService struct {
	Store     store.Store
	Tokens    *TokenService
	TwoFactor *TwoFactorService
	Logger    *slog.Logger

	LockoutThreshold int
	LockoutWindow    time.Duration
}

func (s *AuthService) threshold() int {
	if s.LockoutThreshold <= 0 {
		return DefaultLockoutThreshold
	}
	return s.LockoutThreshold
}

func (s *AuthService) window() time.Duration {
	if s.LockoutWindow <= 0 {
		return DefaultLockoutWindow
	}
	return s.LockoutWindow
}

// Login runs the full credential check: identifier lookup, lockout, password,
// then two-factor when an active credential exists. Unknown identifiers and
// wrong passwords both surface as ErrInvalidCredentials so callers cannot
// probe which accounts exist.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	identity, err := s.Store.Identities().FindByIdentifier(ctx, in.Identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.recordAttempt(ctx, nil, in, false, domain.AttemptReasonUnknownIdentifier)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("failed to look up identity: %w", err)
	}

	locked, err := s.isLockedOut(ctx, identity)
	if err != nil {
		return LoginResult{}, err
	}
	if locked {
		s.recordAttempt(ctx, &identity.ID, in, false, domain.AttemptReasonLockedOut)
		return LoginResult{}, ErrAccountLocked
	}

	if err := cryptox.VerifyPassword(in.Password, identity.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			s.recordAttempt(ctx, &identity.ID, in, false, domain.AttemptReasonBadPassword)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("failed to verify password: %w", err)
	}

	if err := s.checkTwoFactor(ctx, identity, in); err != nil {
		return LoginResult{}, err
	}

	s.recordAttempt(ctx, &identity.ID, in, true, domain.AttemptReasonSuccess)

	token, claims, err := s.Tokens.Issue(identity)
	if err != nil {
		return LoginResult{}, err
	}

	return LoginResult{Token: token, Claims: claims, Identity: identity}, nil
}

// isLockedOut reports whether logins for the identity are currently refused,
// either by the administrative lock flag or by too many recent failures.
// Failures only count since the last successful login, so lockout state
// resets the moment a login goes through.
func (s *AuthService) isLockedOut(ctx context.Context, identity domain.Identity) (bool, error) {
	if identity.Locked {
		return true, nil
	}

	since := time.Now().UTC().Add(-s.window())
	failures, err := s.Store.Attempts().CountRecentFailures(ctx, identity.ID, since)
	if err != nil {
		return false, fmt.Errorf("failed to count recent failures: %w", err)
	}

	return failures >= s.threshold(), nil
}

// checkTwoFactor enforces the second factor when the identity has an active
// credential. A TOTP code is tried first, then the code is redeemed as a
// backup code; identities without an active credential pass through.
func (s *AuthService) checkTwoFactor(ctx context.Context, identity domain.Identity, in LoginInput) error {
	cred, err := s.Store.TwoFactor().Get(ctx, identity.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to load two-factor credential: %w", err)
	}
	if !cred.Active() {
		return nil
	}

	if in.OTPCode == "" {
		s.recordAttempt(ctx, &identity.ID, in, false, domain.AttemptReasonMissingOTP)
		return ErrTwoFactorRequired
	}

	if s.TwoFactor.ValidateCode(in.OTPCode, cred.Secret) {
		return nil
	}

	consumed, err := s.TwoFactor.ConsumeBackupCode(ctx, identity.ID, in.OTPCode)
	if err != nil {
		return err
	}
	if consumed {
		return nil
	}

	s.recordAttempt(ctx, &identity.ID, in, false, domain.AttemptReasonBadOTP)
	return ErrInvalidTwoFactorCode
}

// recordAttempt appends one row to the attempt ledger. Ledger writes are best
// effort; a storage hiccup here must not change the login outcome.
func (s *AuthService) recordAttempt(ctx context.Context, identityID *int64, in LoginInput, success bool, reason string) {
	attempt := domain.LoginAttempt{
		IdentityID: identityID,
		Identifier: in.Identifier,
		Success:    success,
		Reason:     reason,
		IP:         in.IP,
	}

	if err := s.Store.Attempts().Create(ctx, attempt); err != nil {
		s.Logger.Error("failed to record login attempt",
			"identifier", in.Identifier,
			"reason", reason,
			"error", err,
		)
	}
}
