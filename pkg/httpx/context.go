package httpx

import (
	"context"

	"github.com/farmaline-dev/farmaline/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyIdentityID ctxKey = "identity_id"
	CtxKeyClaims     ctxKey = "claims"
)

// ClaimsFromContext returns the verified session claims placed into the
// context by AuthnMiddleware.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(jwtx.Claims)
	return c, ok
}

// IdentityIDFromContext returns the authenticated identity id, if any.
func IdentityIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(CtxKeyIdentityID).(int64)
	return id, ok
}

func roleFromCtx(ctx context.Context) string {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return ""
	}
	return c.Role
}

func permissionsFromCtx(ctx context.Context) []string {
	c, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil
	}
	return c.Permissions
}
