package auth

import "github.com/gin-gonic/gin"

// Flexible returns the identity-resolving middleware for routes that accept
// either a bearer token or a bare signed platform payload: bearer-first,
// with no structured-body path and no cross-checking.
//
// Use on read-only routes only. State-mutating routes that accept
// structured credentials in the body must use Middleware with ModeStrict
// so the per-body consistency checks apply.
func (g *Guard) Flexible() gin.HandlerFunc {
	return g.Middleware(Requirement{Mode: ModeFlexible})
}
