package auth

import (
	"github.com/gin-gonic/gin"

	apperrors "github.com/sealbox/sealbox/internal/errors"
	"github.com/sealbox/sealbox/internal/logger"
)

// RequireRoles returns the role-authorization middleware for routes that
// declare required roles. It runs after the guard and checks the attached
// principal's role against the allowed set.
//
// If no principal is attached (guard ordering violated by a legacy route)
// it falls back to resolving a minimal identity from the platform header.
// The fallback is a documented backward-compatibility redundancy, not a
// second authentication path to extend; its precedence relative to the
// primary guard is an open product question (see DESIGN.md).
func (g *Guard) RequireRoles(roles ...Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFromContext(c.Request.Context())
		if !ok {
			g.log.Warn("role check without attached principal, using header fallback", logger.Fields(
				logger.FieldRoute, c.FullPath(),
			))
			fallback, authErr := g.fallbackIdentity(c)
			if authErr != nil {
				g.reject(c, authErr)
				return
			}
			principal = fallback
		}

		if !principal.HasRole(roles...) {
			g.reject(c, apperrors.InsufficientRole())
			return
		}
		c.Next()
	}
}

// fallbackIdentity re-derives a minimal identity from the platform header
// alone: the raw payload is verified, its user id extracted, and the role
// looked up directly.
func (g *Guard) fallbackIdentity(c *gin.Context) (*Principal, *apperrors.AppError) {
	raw := c.GetHeader(HeaderInitData)
	if raw == "" {
		return nil, apperrors.MissingCredential()
	}
	return g.decideFlexible(c.Request.Context(), raw)
}
