// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"docnum/internal/infrastructure/http/v1/handlers"
	"docnum/internal/infrastructure/http/v1/middleware"
	"docnum/pkg/logger"
)

// Service is what the router needs from the numbering service.
type Service interface {
	handlers.SequenceService
	handlers.Pinger
}

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Service allocates and reports document numbers
	Service Service

	// StoreDriver names the configured counter store (reported by /health/ready)
	StoreDriver string

	// Logger for request logging
	Logger *logger.Logger
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Service, cfg.StoreDriver)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	v1 := router.Group("/api/v1")
	{
		sequenceHandler := handlers.NewSequenceHandler(handlers.NewBaseHandler(), cfg.Service)
		sequenceHandler.RegisterRoutes(v1)
	}

	return router
}
