package auth

import (
	"context"

	"github.com/dmitrijs2005/docvault/internal/common"
)

// RequestContext is the caller identity and request metadata passed
// explicitly into every pipeline operation.
type RequestContext struct {
	Identity
	IPAddress string
	UserAgent string
}

// IsAdmin reports whether the caller may manage documents and catalogs.
func (rc *RequestContext) IsAdmin() bool {
	return rc != nil && (rc.Role == common.RoleAdmin || rc.Role == common.RoleSuperAdmin)
}

type ctxKey struct{}

// WithRequestContext stores rc in ctx.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, rc)
}

// FromContext returns the RequestContext stored by WithRequestContext.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(ctxKey{}).(*RequestContext)
	return rc, ok && rc != nil
}
