package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/farmaline-dev/farmaline/internal/platform/domain"
	httpapi "github.com/farmaline-dev/farmaline/internal/platform/http"
	"github.com/farmaline-dev/farmaline/internal/platform/service"
	"github.com/farmaline-dev/farmaline/internal/platform/store/drivers/sqlite"
	"github.com/farmaline-dev/farmaline/pkg/cryptox"
	"github.com/farmaline-dev/farmaline/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

/*
 * Helpers for end-to-end tests. The full service (router, middleware chain,
 * services, sqlite store) runs in-process against an in-memory database; only
 * the TCP listener comes from httptest.
 */

const testPassword = "CorrectHorseBatteryStaple1"

var identitySeq atomic.Int64

type testEnv struct {
	Router *httpapi.Router
	Store  *sqlite.Store
	Alerts *service.AlertService

	srv *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cryptox.SetPepperPath(filepath.Join(t.TempDir(), "pepper"))

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	signer, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	tokens := &service.TokenService{Signer: signer, Issuer: "farmaline-e2e", TTL: 5 * time.Minute}
	twoFactor := &service.TwoFactorService{Store: st, Issuer: "Farmaline", Skew: 1}
	auth := &service.AuthService{
		Store:            st,
		Tokens:           tokens,
		TwoFactor:        twoFactor,
		Logger:           logger,
		LockoutThreshold: 3,
		LockoutWindow:    15 * time.Minute,
	}
	alerts := service.NewAlertService(st, logger, service.AlertConfig{
		Interval:                 time.Hour,
		Window:                   15 * time.Minute,
		IdentityFailureThreshold: 3,
		IPFailureThreshold:       10,
		IPSpreadThreshold:        4,
		AuditBurstThreshold:      20,
	})

	router := httpapi.NewRouter("e2e", st, logger)
	router.AuthService = auth
	router.TokenService = tokens
	router.TwoFactorService = twoFactor
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{Router: router, Store: st, Alerts: alerts, srv: srv}
}

func (env *testEnv) seedIdentity(t *testing.T, role string) domain.Identity {
	t.Helper()

	hash, err := cryptox.HashPassword(testPassword)
	require.NoError(t, err)

	n := identitySeq.Add(1)
	ident := domain.Identity{
		Name:         fmt.Sprintf("E2E User %d", n),
		Email:        fmt.Sprintf("e2e%d@example.test", n),
		NationalID:   fmt.Sprintf("E2E-%06d", n),
		Role:         role,
		PasswordHash: hash,
	}

	id, err := env.Store.Identities().Create(t.Context(), ident)
	require.NoError(t, err)
	ident.ID = id
	return ident
}

type apiResponse struct {
	Status int
	Body   map[string]any
	Raw    []byte
}

// do issues a request against the router from the given client IP. Each test
// uses its own IPs so rate limit buckets never bleed between scenarios.
func (env *testEnv) do(t *testing.T, method, path, token, ip string, body any) apiResponse {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, env.srv.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	out := apiResponse{Status: res.StatusCode, Raw: raw}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out.Body)
	}
	return out
}

// expiredToken signs a token for the identity that expired an hour ago.
func expiredToken(t *testing.T, ident domain.Identity) string {
	t.Helper()

	signer, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	claims := jwtx.NewClaims(ident.ID, ident.Name, ident.Email, ident.Role,
		domain.PermissionsForRole(ident.Role), time.Minute, "farmaline-e2e",
		time.Now().UTC().Add(-time.Hour))

	token, err := signer.Sign(claims)
	require.NoError(t, err)
	return token
}

func (env *testEnv) login(t *testing.T, identifier, password, otp, ip string) apiResponse {
	t.Helper()
	return env.do(t, http.MethodPost, "/v1/auth/login", "", ip, map[string]string{
		"identifier": identifier,
		"password":   password,
		"otp_code":   otp,
	})
}

func (env *testEnv) mustLogin(t *testing.T, identifier, ip string) string {
	t.Helper()

	res := env.login(t, identifier, testPassword, "", ip)
	require.Equal(t, http.StatusOK, res.Status, "login failed: %s", res.Raw)

	token, _ := res.Body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}
