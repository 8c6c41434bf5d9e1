package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/farmaline-dev/farmaline/internal/platform/domain"
	"github.com/farmaline-dev/farmaline/internal/platform/store"
	"github.com/farmaline-dev/farmaline/pkg/httpx"
)

// auditedMethods are the mutating verbs worth a ledger entry. Reads stay out
// of the audit trail; they would drown the signal the monitor looks for.
var auditedMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// AuditTrail returns the interceptor that records one audit entry per
// authenticated write request. It runs outside the authentication middleware
// and reads the claims that middleware left on the request's AuditScope once
// the handler has finished, so the record reflects what actually happened,
// final status included.
//
// A failed ledger write is logged and swallowed. Auditing must never turn a
// served response into an error.
func AuditTrail(st store.Store, logger *slog.Logger) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, scope := httpx.WithAuditScope(r.Context())
			rec := &auditRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r.WithContext(ctx))

			if scope.Claims == nil || !auditedMethods[r.Method] {
				return
			}

			action := scope.Action
			if action == "" {
				action = r.Method + " " + r.URL.Path
			}
			description := scope.Description
			if description == "" {
				description = fmt.Sprintf("%s %s completed with status %d", r.Method, r.URL.Path, rec.status)
			}

			entry := domain.AuditRecord{
				IdentityID:  &scope.Claims.UID,
				Name:        scope.Claims.Name,
				Email:       scope.Claims.Email,
				Role:        scope.Claims.Role,
				Action:      action,
				Description: description,
				IP:          httpx.ClientIP(r),
			}

			// The client may have disconnected already; the ledger write
			// still has to happen.
			if err := st.Audit().Create(context.WithoutCancel(ctx), entry); err != nil {
				logger.Error("failed to record audit entry",
					"action", action,
					"identity_id", scope.Claims.UID,
					"error", err,
				)
			}
		})
	}
}

type auditRecorder struct {
	http.ResponseWriter
	status int
}

func (r *auditRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
