package auth

import "context"

type contextKey string

// PrincipalContextKey is the router.Context Locals key holding the resolved
// request principal.
const PrincipalContextKey = "auth:principal"

const principalContextKey contextKey = PrincipalContextKey

// WithPrincipal returns a context carrying the resolved principal.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, principal)
}

// PrincipalFromContext retrieves the resolved principal. The second return
// is false when no resolution middleware ran.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalContextKey).(Principal)
	return principal, ok
}

// MustPrincipal returns the principal or Anonymous when none was resolved.
func MustPrincipal(ctx context.Context) Principal {
	principal, ok := PrincipalFromContext(ctx)
	if !ok {
		return Anonymous()
	}
	return principal
}
