// Package api wires the Echo router for the Mailmind backend.
package api

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/mailmind/mailmind-backend/internal/api/handlers"
	"github.com/mailmind/mailmind-backend/internal/api/middleware"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB         *gorm.DB
	Processor  handlers.Processor
	Newsletter handlers.NewsletterRunner
	Logger     *slog.Logger
	// Security configuration
	APIKey    string  // API key for operator endpoints (empty = disabled)
	RateLimit float64 // Requests per second per IP
	RateBurst int     // Burst size for the rate limiter
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Middleware order: recover first, then headers, limits, logging.
	e.Use(middleware.Recover())
	e.Use(middleware.SecureHeaders())
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.Logger))
	}
	if cfg.Logger != nil {
		e.Use(middleware.RequestLogger(cfg.Logger))
	}

	healthHandler := handlers.NewHealthHandler(cfg.DB)
	inboundHandler := handlers.NewInboundHandler(cfg.Processor, cfg.Logger)

	// Health routes (no auth required)
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)

	// The inbound webhook authenticates via the provider's signed URL,
	// not the operator API key.
	e.POST("/webhooks/inbound", inboundHandler.Receive)

	// Operator routes
	api := e.Group("/api")
	api.Use(middleware.APIKeyAuth(cfg.APIKey, cfg.Logger))

	if cfg.Newsletter != nil {
		newsletterHandler := handlers.NewNewsletterHandler(cfg.Newsletter, cfg.Logger)
		api.POST("/jobs/newsletter", newsletterHandler.Trigger)
	}

	return e
}
