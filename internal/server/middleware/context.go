// Package middleware holds the gin middleware mounted on the telemetry API: bearer
// authentication, project scoping and request metrics.
package middleware

import (
	"context"

	"github.com/atqamz/kogase-engine/internal/security"
)

type contextKey struct{ name string }

var principalKey = contextKey{"principal"}

// WithPrincipal returns a context carrying the authenticated caller.
func WithPrincipal(ctx context.Context, p *security.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the caller set by Auth and true, or nil and false when the request
// was not authenticated.
func PrincipalFrom(ctx context.Context) (*security.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*security.Principal)
	return p, ok && p != nil
}
