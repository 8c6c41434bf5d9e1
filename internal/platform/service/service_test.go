package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/farmaline-dev/farmaline/internal/platform/domain"
	"github.com/farmaline-dev/farmaline/internal/platform/store/drivers/sqlite"
	"github.com/farmaline-dev/farmaline/pkg/cryptox"
	"github.com/farmaline-dev/farmaline/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

var identitySeq atomic.Int64

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	cryptox.SetPepperPath(filepath.Join(t.TempDir(), "pepper"))

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.ApplyMigrations())
	return st
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTokenService(t *testing.T) *TokenService {
	t.Helper()

	signer, err := jwtx.NewHS256(testSigningKey)
	require.NoError(t, err)

	return &TokenService{Signer: signer, Issuer: "farmaline-test", TTL: time.Minute}
}

func seedIdentity(t *testing.T, st *sqlite.Store, password, role string) domain.Identity {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	n := identitySeq.Add(1)
	ident := domain.Identity{
		Name:         fmt.Sprintf("Test User %d", n),
		Email:        fmt.Sprintf("user%d@example.test", n),
		NationalID:   fmt.Sprintf("NID-%06d", n),
		Role:         role,
		PasswordHash: hash,
	}

	id, err := st.Identities().Create(context.Background(), ident)
	require.NoError(t, err)
	ident.ID = id
	return ident
}
