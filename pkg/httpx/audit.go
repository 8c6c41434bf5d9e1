package httpx

import (
	"context"

	"github.com/farmaline-dev/farmaline/pkg/jwtx"
)

// AuditScope is the per-request scratch state read by the audit interceptor
// after the handler has completed. The interceptor seeds one into the request
// context before calling downstream; the authentication middleware records
// the verified claims on it, and handlers may override the action label or
// description for the resulting audit record.
//
// One request, one goroutine, one scope: no locking.
type AuditScope struct {
	// Claims are set by AuthnMiddleware after a successful token check.
	Claims *jwtx.Claims

	// Action overrides the default "METHOD /path" label when non-empty.
	Action string

	// Description overrides the generated description when non-empty.
	Description string
}

type auditScopeKey struct{}

// WithAuditScope seeds a fresh AuditScope into ctx and returns both.
func WithAuditScope(ctx context.Context) (context.Context, *AuditScope) {
	scope := &AuditScope{}
	return context.WithValue(ctx, auditScopeKey{}, scope), scope
}

// AuditScopeFromContext returns the request's AuditScope, or nil when the
// request did not pass through the audit interceptor.
func AuditScopeFromContext(ctx context.Context) *AuditScope {
	scope, _ := ctx.Value(auditScopeKey{}).(*AuditScope)
	return scope
}

// SetAuditAction lets a handler override the action label recorded for the
// current request. No-op outside an audited request.
func SetAuditAction(ctx context.Context, action string) {
	if scope := AuditScopeFromContext(ctx); scope != nil {
		scope.Action = action
	}
}

// SetAuditDescription lets a handler override the free-text description
// recorded for the current request. No-op outside an audited request.
func SetAuditDescription(ctx context.Context, description string) {
	if scope := AuditScopeFromContext(ctx); scope != nil {
		scope.Description = description
	}
}
