package auth

import "context"

// principalKey is an unexported type to prevent collisions with other
// packages storing values in the same context.
type principalKey struct{}

// setPrincipal stores the resolved principal in the context. Only the guard
// writes it, exactly once per request.
func setPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// ContextWithPrincipal attaches a principal directly. Handler tests use
// this to stand in for the guard; request paths must go through Guard.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return setPrincipal(ctx, p)
}

// PrincipalFromContext retrieves the principal attached by the guard.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}

// MustPrincipal retrieves the principal from the context.
// Panics if missing; use in handlers that the guard provably protects.
func MustPrincipal(ctx context.Context) *Principal {
	p, ok := PrincipalFromContext(ctx)
	if !ok {
		panic("auth: principal not found in context")
	}
	return p
}
