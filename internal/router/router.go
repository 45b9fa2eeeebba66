package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/training-portal/internal/handler"
	"github.com/iliyamo/training-portal/internal/middleware"
)

// RegisterRoutes registers the probes and the metrics endpoint.  These do
// not require authentication.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler, metrics http.Handler) {
	e.GET("/healthz", h.Health)
	e.GET("/readyz", h.Ready)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// RegisterAuth registers the session endpoints under /v1/auth.  limit is
// applied to the credential-bearing endpoints (login and refresh); pass nil
// to disable it.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, verifier middleware.TokenVerifier, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")

	var throttled []echo.MiddlewareFunc
	if limit != nil {
		throttled = append(throttled, limit)
	}
	g.POST("/login", a.Login, throttled...)
	g.POST("/refresh", a.Refresh, throttled...)
	// Logout takes the refresh token in the body and needs no access token.
	g.POST("/logout", a.Logout)

	// Protected: any authenticated principal.
	auth := g.Group("", middleware.JWTAuth(verifier))
	auth.POST("/logout-all", a.LogoutAll)
	auth.GET("/me", a.Me)
}

// RegisterRemote registers the kiosk support endpoints under /v1/remote.
// Issuing codes and sending notifications is restricted to staff; the kiosk
// polling endpoints are public and keyed by login code.
func RegisterRemote(e *echo.Echo, r *handler.RemoteHandler, verifier middleware.TokenVerifier) {
	g := e.Group("/v1/remote")

	g.GET("/check-temp-password/:loginCode", r.CheckTempPassword)
	g.GET("/get-notification/:loginCode", r.GetNotification)

	staff := g.Group("", middleware.JWTAuth(verifier), middleware.RequireInstructor)
	staff.POST("/issue-temp-password", r.IssueTempPassword)
	staff.POST("/notify", r.Notify)
}
