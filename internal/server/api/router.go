package api

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"stash/internal/server/auth"
	"stash/internal/server/config"
)

// SetupRouter creates and configures the echo router with all routes and
// middleware. ctx bounds the lifetime of the rate limiter's background
// cleanup.
func SetupRouter(ctx context.Context, handler *Handler, gateway *auth.Gateway, cfg *config.Config) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Global middleware
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization", TokenHeader},
	}))
	e.Use(RequestLogger())

	// Rate limiter on the upload endpoint only
	uploadLimiter := NewRateLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)

	requireToken := RequireToken(gateway)
	optionalToken := OptionalToken(gateway)

	// Health & stats
	e.GET("/status", handler.HandleStatus)
	e.GET("/stats", handler.HandleStats)

	// Accounts & sessions
	e.POST("/users", handler.HandleRegister)
	e.GET("/users/me", handler.HandleMe, requireToken)
	e.GET("/connect", handler.HandleConnect)
	e.GET("/disconnect", handler.HandleDisconnect)

	// Files
	e.POST("/files", handler.HandleUpload, requireToken, uploadLimiter.Middleware())
	e.GET("/files", handler.HandleIndex, requireToken)
	e.GET("/files/:id", handler.HandleShow, requireToken)
	e.PUT("/files/:id/publish", handler.HandlePublish, requireToken)
	e.PUT("/files/:id/unpublish", handler.HandleUnpublish, requireToken)

	// Content retrieval is the only anonymous-friendly route
	e.GET("/files/:id/data", handler.HandleContent, optionalToken)

	return e
}
