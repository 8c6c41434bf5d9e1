package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultSessionTTL is the default session token lifetime. Long enough for a
// checkout flow, short enough that a leaked token ages out quickly given
// there is no revocation path.
const DefaultSessionTTL = 90 * time.Minute

// Claims are the session-token claims shared across the platform. The custom
// fields mirror the identity at issuance; tokens are never refreshed in place.
type Claims struct {
	jwt.RegisteredClaims

	// UID is the numeric identity id ("sub" carries the same value as text).
	UID int64 `json:"uid"`

	// Name is the identity's display name.
	Name string `json:"name,omitempty"`

	// Email of the authenticated identity.
	Email string `json:"email,omitempty"`

	// Role at issuance time, e.g. "pharmacist".
	Role string `json:"role,omitempty"`

	// Permissions derived from the role at issuance time.
	Permissions []string `json:"permissions,omitempty"`
}

// NewClaims builds minimally-correct session claims.
func NewClaims(
	uid int64,
	name, email, role string,
	permissions []string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(uid, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		UID:         uid,
		Name:        name,
		Email:       email,
		Role:        role,
		Permissions: permissions,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}
