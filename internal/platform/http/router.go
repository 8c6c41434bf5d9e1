package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/farmaline-dev/farmaline/internal/platform/service"
	"github.com/farmaline-dev/farmaline/internal/platform/store"
	"github.com/farmaline-dev/farmaline/pkg/httpx"
	"github.com/farmaline-dev/farmaline/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store            store.Store
	AuthService      *service.AuthService
	TokenService     *service.TokenService
	TwoFactorService *service.TwoFactorService
}

func NewRouter(buildVersion string, st store.Store, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	// Global chain. The audit interceptor sits inside the logger so its
	// scope is in place before any authentication runs.
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		AuditTrail(r.store, r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerTwoFactor()
	r.registerAudit()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	loginHandler := &LoginHandler{Auth: r.AuthService}

	// Strict per-IP limit: this endpoint is the brute-force target.
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(loginHandler.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerTwoFactor() {
	handler := &TwoFactorHandler{
		TwoFactor: r.TwoFactorService,
		Store:     r.store,
	}

	authn := httpx.AuthnMiddleware(r.TokenService)

	r.Mux.Handle("POST /v1/auth/2fa/enroll",
		httpx.Chain(http.HandlerFunc(handler.HandleEnroll),
			authn,
			httpx.RateLimitByIdentity(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/auth/2fa/activate",
		httpx.Chain(http.HandlerFunc(handler.HandleActivate),
			authn,
			httpx.RateLimitByIdentity(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("DELETE /v1/auth/2fa",
		httpx.Chain(http.HandlerFunc(handler.HandleDeactivate),
			authn,
			httpx.RateLimitByIdentity(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerAudit() {
	auditHandler := &AuditHandler{Store: r.store}
	alertsHandler := &AlertsHandler{Store: r.store}

	authn := httpx.AuthnMiddleware(r.TokenService)

	// Only the admin role carries these permissions today, but gating on the
	// permission keeps the routes stable if reporting is ever granted to
	// another role.
	r.Mux.Handle("GET /v1/audit",
		httpx.Chain(http.HandlerFunc(auditHandler.HandleList),
			authn,
			httpx.RequireAnyPermission("audit:read"),
			httpx.RateLimitByIdentity(httpx.LenientLimit),
		),
	)

	r.Mux.Handle("GET /v1/alerts",
		httpx.Chain(http.HandlerFunc(alertsHandler.HandleList),
			authn,
			httpx.RequireAnyPermission("alerts:read"),
			httpx.RateLimitByIdentity(httpx.LenientLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.store, r.startTime, r.buildVersion))
}
