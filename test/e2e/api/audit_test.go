package api_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/farmaline-dev/farmaline/internal/platform/domain"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
)

func TestAuditTrailFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedIdentity(t, domain.RoleAdmin)

	adminToken := env.mustLogin(t, admin.Email, "203.0.113.40")

	// An authenticated write lands in the audit trail.
	enroll := env.do(t, http.MethodPost, "/v1/auth/2fa/enroll", adminToken, "203.0.113.40", nil)
	require.Equal(t, http.StatusOK, enroll.Status)

	audit := env.do(t, http.MethodGet, "/v1/audit", adminToken, "203.0.113.40", nil)
	require.Equal(t, http.StatusOK, audit.Status)

	records, ok := audit.Body["records"].([]any)
	require.True(t, ok)
	require.Len(t, records, 1)

	rec := records[0].(map[string]any)
	require.Equal(t, admin.Email, rec["email"])
	require.Equal(t, "POST /v1/auth/2fa/enroll", rec["action"])
	require.Equal(t, "203.0.113.40", rec["ip"])

	// Reading the audit log is itself a GET and must not create an entry.
	again := env.do(t, http.MethodGet, "/v1/audit", adminToken, "203.0.113.40", nil)
	require.Equal(t, http.StatusOK, again.Status)
	records, _ = again.Body["records"].([]any)
	require.Len(t, records, 1)
}

func TestAlertFlow(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedIdentity(t, domain.RoleAdmin)
	victim := env.seedIdentity(t, domain.RoleCustomer)

	// Trip the per-identity failure rule.
	for _, ip := range []string{"203.0.113.50", "203.0.113.51", "203.0.113.52"} {
		res := env.login(t, victim.Email, "wrong", "", ip)
		require.Equal(t, http.StatusUnauthorized, res.Status)
	}

	require.NoError(t, env.Alerts.ScanOnce(t.Context()))

	adminToken := env.mustLogin(t, admin.Email, "203.0.113.53")
	res := env.do(t, http.MethodGet, "/v1/alerts", adminToken, "203.0.113.53", nil)
	require.Equal(t, http.StatusOK, res.Status)

	alerts, ok := res.Body["alerts"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, alerts)

	first := alerts[0].(map[string]any)
	require.Equal(t, domain.AlertRuleIdentityFailures, first["rule"])
	require.Equal(t, float64(victim.ID), first["identity_id"])
}

func TestSessionExpiry(t *testing.T) {
	env := newTestEnv(t)
	ident := env.seedIdentity(t, domain.RoleCustomer)

	// A fresh token works, an expired one signed with the same key does not.
	token := env.mustLogin(t, ident.Email, "203.0.113.60")
	res := env.do(t, http.MethodPost, "/v1/auth/2fa/enroll", token, "203.0.113.60", nil)
	require.Equal(t, http.StatusOK, res.Status)

	expired := expiredToken(t, ident)
	res = env.do(t, http.MethodPost, "/v1/auth/2fa/activate", expired, "203.0.113.60",
		map[string]string{"code": "000000"})
	require.Equal(t, http.StatusUnauthorized, res.Status)
}

func TestTwoFactorCodeWindow(t *testing.T) {
	env := newTestEnv(t)
	ident := env.seedIdentity(t, domain.RoleCustomer)

	token := env.mustLogin(t, ident.Email, "203.0.113.70")

	enroll := env.do(t, http.MethodPost, "/v1/auth/2fa/enroll", token, "203.0.113.70", nil)
	require.Equal(t, http.StatusOK, enroll.Status)
	secret := enroll.Body["secret"].(string)

	// A code from the previous 30 second step still activates, one step of
	// skew is accepted.
	stale, err := totp.GenerateCode(secret, time.Now().UTC().Add(-30*time.Second))
	require.NoError(t, err)

	res := env.do(t, http.MethodPost, "/v1/auth/2fa/activate", token, "203.0.113.70",
		map[string]string{"code": stale})
	require.Equal(t, http.StatusOK, res.Status)
}
