package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/farmaline-dev/farmaline/internal/platform/domain"
	"github.com/farmaline-dev/farmaline/pkg/jwtx"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// TokenService issues and validates signed session tokens. Tokens carry the
// identity's id, display fields, role, and the permissions derived from that
// role at issue time.
type TokenService struct {
	Signer *jwtx.HS256
	Issuer string
	TTL    time.Duration
}

// Issue signs a session token for the given identity. The token embeds the
// role's permission set as it stands now, so a role change only takes effect
// on the next login.
func (s *TokenService) Issue(identity domain.Identity) (string, jwtx.Claims, error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}

	claims := jwtx.NewClaims(
		identity.ID,
		identity.Name,
		identity.Email,
		identity.Role,
		domain.PermissionsForRole(identity.Role),
		ttl,
		s.Issuer,
		time.Now().UTC(),
	)

	token, err := s.Signer.Sign(claims)
	if err != nil {
		return "", jwtx.Claims{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	return token, claims, nil
}

// Validate parses and verifies a session token, returning its claims.
func (s *TokenService) Validate(raw string) (jwtx.Claims, error) {
	claims, err := s.Signer.Verify(raw)
	if err != nil {
		if errors.Is(err, jwtx.ErrExpired) {
			return jwtx.Claims{}, ErrExpiredToken
		}
		return jwtx.Claims{}, ErrInvalidToken
	}
	return claims, nil
}

// Verify implements httpx.TokenVerifier.
func (s *TokenService) Verify(raw string) (jwtx.Claims, error) {
	return s.Validate(raw)
}
