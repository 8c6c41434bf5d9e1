package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalid covers malformed tokens, bad signatures and wrong algorithms.
	ErrInvalid = errors.New("jwtx: invalid token")

	// ErrExpired is returned only for structurally valid, correctly signed
	// tokens whose lifetime has elapsed.
	ErrExpired = errors.New("jwtx: token expired")

	// ErrKeyTooShort rejects signing keys with less entropy than the HMAC
	// output size.
	ErrKeyTooShort = errors.New("jwtx: signing key must be at least 32 bytes")
)

// HS256 signs and verifies session tokens with a single symmetric key. The
// key is fixed at construction and shared read-only by all verifications, so
// no locking is needed.
//
// There is deliberately no issuer/audience binding and no revocation list: a
// leaked unexpired token stays valid until it expires. Deployments that need
// revocation have to put a denylist in front of Verify.
type HS256 struct {
	key []byte
}

// NewHS256 wraps a symmetric signing key. The key bytes are copied.
func NewHS256(key []byte) (*HS256, error) {
	if len(key) < 32 {
		return nil, ErrKeyTooShort
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &HS256{key: k}, nil
}

// Sign produces a compact JWS for the given claims.
func (s *HS256) Sign(c Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
}

// Verify checks signature integrity and expiry and returns the embedded
// claims. Expiry is the only time-based check surfaced distinctly; every
// other failure collapses into ErrInvalid so callers can't probe token
// structure.
func (s *HS256) Verify(raw string) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (any, error) { return s.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpired
		}
		return Claims{}, ErrInvalid
	}
	return claims, nil
}
