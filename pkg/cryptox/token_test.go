package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	a, err := GenerateToken(TokenSize128)
	require.NoError(t, err)
	require.Len(t, a, 22)

	b, err := GenerateToken(TokenSize128)
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	_, err = GenerateToken(0)
	require.Error(t, err)
}

func TestFingerprintToken(t *testing.T) {
	fp := FingerprintToken("backup-code")
	require.Len(t, fp, 43)
	require.Equal(t, fp, FingerprintToken("backup-code"))
	require.NotEqual(t, fp, FingerprintToken("other-code"))
}
