package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/mealmatch/internal/handler"    // handlers that implement the endpoints
	"github.com/iliyamo/mealmatch/internal/middleware" // JWT authentication, admin gate, rate limiting
	"github.com/iliyamo/mealmatch/internal/ws"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check over the given registries.
func RegisterRoutes(e *echo.Echo, managers ...*ws.Manager) {
	e.GET("/healthz", handler.Health(managers...))
}

// RegisterAuth registers the token endpoints under /v1/auth.  limiter runs in
// front of every one of them; pass nil to disable throttling.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/auth")
	if limiter != nil {
		g.Use(limiter)
	}
	g.POST("/login", a.Login)
	// Rotates the refresh token; each refresh token is accepted once.
	g.POST("/refresh", a.Refresh)
	g.POST("/verify", a.Verify)
}

// RegisterRealtime registers the websocket endpoints.  Admission is decided
// by each protocol's permission sets, not by HTTP middleware, so a denied
// client still receives a status frame.
func RegisterRealtime(e *echo.Echo, h *handler.RealtimeHandler) {
	e.GET("/v1/chat/:pool_id/:username", h.ChatSocket)
	e.GET("/v1/sessions/:session_id/ws", h.SessionSocket)
}

// RegisterAdmin registers the registry inspection endpoints.  They require an
// access token whose user carries the admin flag.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, tokens middleware.AccessDecoder, users middleware.AdminChecker) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(tokens))
	g.Use(middleware.RequireAdmin(users))
	g.GET("/pools", h.ListPools)
	g.GET("/pools/:registry/:pool_id", h.GetPool)
	g.DELETE("/pools/:registry/:pool_id", h.ClosePool)
	g.POST("/broadcast", h.Broadcast)
}

// RegisterMe registers the endpoints that act on the caller's own account.
func RegisterMe(e *echo.Echo, h *handler.MeHandler, tokens middleware.AccessDecoder) {
	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(tokens))
	auth.GET("/me", h.Me)
}
