package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/farmaline-dev/farmaline/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func requestWithClaims(claims jwtx.Claims) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), CtxKeyClaims, claims)
	return req.WithContext(ctx)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole("admin", "pharmacist")(okHandler())

	t.Run("matching role passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithClaims(jwtx.Claims{Role: "pharmacist"}))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("other role is forbidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, requestWithClaims(jwtx.Claims{Role: "customer"}))
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "insufficient_scope")
	})

	t.Run("anonymous is forbidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestRequireAnyPermission(t *testing.T) {
	handler := RequireAnyPermission("audit:read")(okHandler())

	t.Run("holder passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		claims := jwtx.Claims{Role: "admin", Permissions: []string{"catalog:write", "audit:read"}}
		handler.ServeHTTP(rec, requestWithClaims(claims))
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("other permissions are not enough", func(t *testing.T) {
		rec := httptest.NewRecorder()
		claims := jwtx.Claims{Role: "pharmacist", Permissions: []string{"catalog:write", "orders:manage"}}
		handler.ServeHTTP(rec, requestWithClaims(claims))
		require.Equal(t, http.StatusForbidden, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "insufficient_scope")
	})

	t.Run("anonymous is forbidden", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusForbidden, rec.Code)
	})
}
