package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/partner-portal/internal/config"
	"github.com/iliyamo/partner-portal/internal/handler"
	"github.com/iliyamo/partner-portal/internal/logger"
	"github.com/iliyamo/partner-portal/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication: the
// health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// PortalDeps carries what the /v1 middleware chain needs.  A nil Redis
// client disables both the cache and the rate limiter.
type PortalDeps struct {
	JWTSecret string
	JWTIssuer string
	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
	Log       logger.Logger
}

// RegisterPortal registers the authenticated partner portal under /v1.
// Every route runs JWTAuth and then the per-user token bucket; the tariff
// sheet is cached per user and /v1/admin requires an admin agency.
func RegisterPortal(e *echo.Echo, h *handler.PortalHandler, d PortalDeps) {
	v1 := e.Group("/v1",
		middleware.JWTAuth(d.JWTSecret, d.JWTIssuer),
		middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log),
	)
	v1.GET("/me", h.Me)
	v1.GET("/tariffs", h.Tariffs, middleware.NewRedisCache(d.Cache, d.Redis))
	v1.POST("/simulations", h.Simulate)
	v1.POST("/reservations", h.CreateReservation)

	v1.GET("/mural", h.Mural)
	v1.POST("/mural/:id/read", h.ConfirmRead)
	v1.GET("/read-log", h.ReadLog)

	admin := v1.Group("/admin", middleware.RequireAdmin(h.IsAdmin))
	admin.POST("/agencies", h.CreateAgency)
}
