// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"logiref/internal/core/idempotency"
	"logiref/internal/infrastructure/http/v1/handlers"
	"logiref/internal/infrastructure/http/v1/middleware"
	"logiref/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Authorizer resolves roles and rejects customers
	Authorizer middleware.Authorizer

	// References allocates identifiers
	References handlers.ReferenceService

	// Health serves /health probes
	Health *handlers.HealthHandler

	// Idempotency replays repeated POSTs; nil disables the middleware
	Idempotency idempotency.Store

	// Mode is the gin mode (release, debug, test); release when empty
	Mode string
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	mode := cfg.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(log))
	router.Use(middleware.ErrorHandler())

	if cfg.Health != nil {
		health := router.Group("/health")
		{
			health.GET("/live", cfg.Health.Live)
			health.GET("/ready", cfg.Health.Ready)
			health.GET("/info", cfg.Health.Info)
		}
	}

	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))       // 1. Validate JWT
		protected.Use(middleware.RequireStaff(cfg.Authorizer)) // 2. Resolve role, reject customers

		if cfg.Idempotency != nil {
			protected.Use(middleware.Idempotency(cfg.Idempotency))
		}

		baseHandler := handlers.NewBaseHandler()
		refHandler := handlers.NewReferenceHandler(baseHandler, cfg.References)
		RegisterReferenceRoutes(protected.Group("/references"), refHandler)
	}

	return router
}
