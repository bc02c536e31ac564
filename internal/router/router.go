// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/mikefreno/freno-dev-sub000/internal/handler"
	"github.com/mikefreno/freno-dev-sub000/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance. Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication surface. Unauthenticated
// operations live under /v1/auth; endpoints requiring an access token live
// under /v1. Logout is CSRF-protected but deliberately not JWT-protected:
// a client with an expired access token must still be able to sign out
// with its session cookie.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, middleware.CSRF())
	g.POST("/password-reset/request", a.RequestPasswordReset)
	g.POST("/password-reset/complete", a.ResetPassword)
	g.POST("/verify-email/resend", a.ResendVerification)
	g.POST("/verify-email/confirm", a.VerifyEmail)
	g.GET("/oauth/:provider/callback", a.OAuthCallback)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
	auth.DELETE("/me", a.DeleteAccount, middleware.CSRF())
}
