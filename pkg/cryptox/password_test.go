package cryptox

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func useTempPepper(t *testing.T) {
	t.Helper()
	pepper = ""
	SetPepperPath(filepath.Join(t.TempDir(), "pepper"))
	t.Cleanup(func() { pepper = "" })
}

func TestHashAndVerifyPassword(t *testing.T) {
	useTempPepper(t)

	hash, err := HashPassword("Tr1cky-Passw0rd!")
	require.NoError(t, err)
	require.Contains(t, hash, "$argon2id$v=19$")

	require.NoError(t, VerifyPassword("Tr1cky-Passw0rd!", hash))
	require.ErrorIs(t, VerifyPassword("wrong-password", hash), ErrPasswordMismatch)
}

func TestHashesAreSalted(t *testing.T) {
	useTempPepper(t)

	a, err := HashPassword("same-password")
	require.NoError(t, err)
	b, err := HashPassword("same-password")
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	useTempPepper(t)

	for _, h := range []string{
		"",
		"plainly-not-a-hash",
		"$argon2i$v=19$m=19456,t=2,p=1$abc$def",
		"$argon2id$v=18$m=19456,t=2,p=1$abc$def",
		"$argon2id$v=19$m=oops$abc$def",
	} {
		require.Error(t, VerifyPassword("anything", h), "hash %q", h)
	}
}
