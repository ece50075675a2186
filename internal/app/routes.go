package app

import (
	"github.com/gin-gonic/gin"

	"github.com/sealbox/sealbox/internal/account"
	"github.com/sealbox/sealbox/internal/auth"
	"github.com/sealbox/sealbox/internal/config"
	"github.com/sealbox/sealbox/internal/secret"
	"github.com/sealbox/sealbox/internal/server/middleware"
)

// registerRoutes declares the API surface. Each route names its auth
// requirement here, at registration time; the guard is the only place that
// interprets it.
func registerRoutes(engine *gin.Engine, guard *auth.Guard, secrets *config.SecretsConfig,
	secretHandler *secret.Handler, accountHandler *account.Handler) {

	api := engine.Group("/api/v1")

	authGroup := api.Group("/auth")
	// Login trades verified init data for a bearer token, so a token can
	// never mint another token.
	authGroup.POST("/login", guard.Middleware(auth.Requirement{Mode: auth.ModePlatform}), accountHandler.Login)
	authGroup.GET("/me", guard.Middleware(auth.Requirement{}), accountHandler.Me)

	sec := api.Group("/secrets")
	sec.POST("", guard.Middleware(auth.Requirement{}), secretHandler.Create)
	sec.GET("", guard.Middleware(auth.Requirement{}), secretHandler.List)
	// Reveal is read-only and recipient-facing; it takes the flexible
	// requirement plus a rate limit to slow down secret-id scanning.
	sec.GET("/:id",
		middleware.RateLimit(middleware.RateLimitConfig{RequestsPerMinute: secrets.RevealRatePerMinute}),
		guard.Flexible(),
		secretHandler.Reveal)
	sec.DELETE("/:id", guard.Middleware(auth.Requirement{}), secretHandler.Delete)

	admin := api.Group("/admin")
	admin.Use(guard.Middleware(auth.Requirement{}), guard.RequireRoles(auth.RoleAdmin))
	admin.POST("/secrets/purge", secretHandler.Purge)
}
