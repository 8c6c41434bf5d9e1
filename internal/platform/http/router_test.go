package http

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
	"github.com/farmaline-dev/farmaline/internal/platform/service"
	"github.com/farmaline-dev/farmaline/internal/platform/store/drivers/sqlite"
	"github.com/farmaline-dev/farmaline/pkg/cryptox"
	"github.com/farmaline-dev/farmaline/pkg/jwtx"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

var identitySeq atomic.Int64

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T) (*Router, *sqlite.Store) {
	t.Helper()

	cryptox.SetPepperPath(filepath.Join(t.TempDir(), "pepper"))

	st := newTestStore(t)

	signer, err := jwtx.NewHS256([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	tokens := &service.TokenService{Signer: signer, Issuer: "farmaline-test", TTL: time.Minute}
	twoFactor := &service.TwoFactorService{Store: st, Issuer: "Farmaline", Skew: 1}
	auth := &service.AuthService{
		Store:            st,
		Tokens:           tokens,
		TwoFactor:        twoFactor,
		Logger:           testLogger(),
		LockoutThreshold: 5,
		LockoutWindow:    15 * time.Minute,
	}

	router := NewRouter("test", st, testLogger())
	router.AuthService = auth
	router.TokenService = tokens
	router.TwoFactorService = twoFactor
	router.ApplyRoutes()

	return router, st
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

	id, err := st.Identities().Create(t.Context(), ident)
	require.NoError(t, err)
	ident.ID = id
	return ident
}

func doJSON(t *testing.T, router *Router, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func totpCode(secret string) (string, error) {
	return totp.GenerateCode(secret, time.Now().UTC())
}

func login(t *testing.T, router *Router, identifier, password, otp string) *httptest.ResponseRecorder {
	t.Helper()
	return doJSON(t, router, http.MethodPost, "/v1/auth/login", "", LoginRequest{
		Identifier: identifier,
		Password:   password,
		OTPCode:    otp,
	})
}

func TestLoginEndpoint(t *testing.T) {
	router, st := newTestRouter(t)
	ident := seedIdentity(t, st, "correct password", domain.RolePharmacist)

	t.Run("success", func(t *testing.T) {
		rec := login(t, router, ident.Email, "correct password", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var res LoginResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
		require.Equal(t, "Bearer", res.TokenType)
		require.NotEmpty(t, res.AccessToken)
		require.Equal(t, ident.ID, res.Identity.ID)
		require.Equal(t, domain.RolePharmacist, res.Identity.Role)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := login(t, router, ident.Email, "wrong password", "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), ErrorCodeInvalidCreds)
	})

	t.Run("unknown identifier reads the same", func(t *testing.T) {
		rec := login(t, router, "ghost@example.test", "whatever", "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), ErrorCodeInvalidCreds)
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := login(t, router, ident.Email, "", "")
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLoginEndpointRateLimited(t *testing.T) {
	router, st := newTestRouter(t)
	ident := seedIdentity(t, st, "correct password", domain.RoleCustomer)

	// The strict per-IP budget is five per minute.
	for range 5 {
		rec := login(t, router, ident.Email, "wrong", "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := login(t, router, ident.Email, "correct password", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestTwoFactorEndpoints(t *testing.T) {
	router, st := newTestRouter(t)
	ident := seedIdentity(t, st, "correct password", domain.RoleCustomer)

	rec := login(t, router, ident.Email, "correct password", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var session LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&session))
	token := session.AccessToken

	t.Run("enroll requires authentication", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/v1/auth/2fa/enroll", "", nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	var enrollment TwoFactorEnrollResponse
	t.Run("enroll", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/v1/auth/2fa/enroll", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&enrollment))
		require.NotEmpty(t, enrollment.Secret)
		require.Len(t, enrollment.BackupCodes, 10)
	})

	t.Run("activate with bad code", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/v1/auth/2fa/activate", token,
			TwoFactorCodeRequest{Code: "000000"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), ErrorCodeTwoFactorInvalid)
	})

	t.Run("activate", func(t *testing.T) {
		code, err := totpCode(enrollment.Secret)
		require.NoError(t, err)

		rec := doJSON(t, router, http.MethodPost, "/v1/auth/2fa/activate", token,
			TwoFactorCodeRequest{Code: code})
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("login now requires a code", func(t *testing.T) {
		rec := login(t, router, ident.Email, "correct password", "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), ErrorCodeTwoFactorNeeded)
	})

	t.Run("login with backup code", func(t *testing.T) {
		rec := login(t, router, ident.Email, "correct password", enrollment.BackupCodes[0])
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("deactivate", func(t *testing.T) {
		code, err := totpCode(enrollment.Secret)
		require.NoError(t, err)

		rec := doJSON(t, router, http.MethodDelete, "/v1/auth/2fa", token,
			TwoFactorCodeRequest{Code: code})
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("audit trail recorded the changes", func(t *testing.T) {
		records, err := st.Audit().List(t.Context(), domain.AuditQuery{})
		require.NoError(t, err)

		var descriptions []string
		for _, r := range records {
			descriptions = append(descriptions, r.Description)
		}
		require.Contains(t, descriptions, "started two-factor enrollment")
		require.Contains(t, descriptions, "activated two-factor authentication")
		require.Contains(t, descriptions, "deactivated two-factor authentication")
	})
}

func TestAuditAndAlertEndpointsRequireAdmin(t *testing.T) {
	router, st := newTestRouter(t)

	admin := seedIdentity(t, st, "admin password", domain.RoleAdmin)
	customer := seedIdentity(t, st, "customer password", domain.RoleCustomer)

	adminRec := login(t, router, admin.Email, "admin password", "")
	require.Equal(t, http.StatusOK, adminRec.Code)
	var adminSession LoginResponse
	require.NoError(t, json.NewDecoder(adminRec.Body).Decode(&adminSession))

	customerRec := login(t, router, customer.Email, "customer password", "")
	require.Equal(t, http.StatusOK, customerRec.Code)
	var customerSession LoginResponse
	require.NoError(t, json.NewDecoder(customerRec.Body).Decode(&customerSession))

	pharmacist := seedIdentity(t, st, "pharmacist password", domain.RolePharmacist)
	pharmacistRec := login(t, router, pharmacist.Email, "pharmacist password", "")
	require.Equal(t, http.StatusOK, pharmacistRec.Code)
	var pharmacistSession LoginResponse
	require.NoError(t, json.NewDecoder(pharmacistRec.Body).Decode(&pharmacistSession))

	t.Run("customer is forbidden", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/v1/audit", customerSession.AccessToken, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)

		rec = doJSON(t, router, http.MethodGet, "/v1/alerts", customerSession.AccessToken, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("pharmacist lacks the reporting permissions", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/v1/audit", pharmacistSession.AccessToken, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)

		rec = doJSON(t, router, http.MethodGet, "/v1/alerts", pharmacistSession.AccessToken, nil)
		require.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin can read both", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/v1/audit", adminSession.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, router, http.MethodGet, "/v1/alerts", adminSession.AccessToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("rejects bad query parameters", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/v1/audit?identity_id=abc", adminSession.AccessToken, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
