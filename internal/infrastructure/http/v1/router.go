// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"lotcost/internal/domain/catalogs/material"
	"lotcost/internal/domain/costing"
	"lotcost/internal/domain/documents/production"
	"lotcost/internal/domain/documents/sale"
	"lotcost/internal/infrastructure/http/v1/handlers"
	"lotcost/internal/infrastructure/http/v1/middleware"
	"lotcost/internal/infrastructure/idempotency"
	"lotcost/pkg/logger"
)

// RouterConfig holds router dependencies.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	Engine     *costing.Engine
	Settings   costing.Settings
	Materials  *material.Service
	Sales      *sale.Service
	Production *production.Service

	// Storage names the storage driver for the readiness probe.
	Storage string
	// DB is pinged by the readiness probe; nil for in-memory storage.
	DB handlers.Pinger

	// Idempotency enables X-Idempotency-Key handling when set.
	Idempotency idempotency.Store

	// Metrics serves /metrics when set.
	Metrics http.Handler
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.Storage, cfg.DB)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Organization())
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	materialHandler := handlers.NewMaterialHandler(base, cfg.Materials, cfg.Engine)
	costingHandler := handlers.NewCostingHandler(materialHandler, cfg.Settings)
	documentHandler := handlers.NewDocumentHandler(base, cfg.Sales, cfg.Production)

	materials := api.Group("/materials")
	{
		materials.POST("", materialHandler.Create)
		materials.GET("/:id", materialHandler.Get)
		materials.GET("/:id/lots", materialHandler.ListLots)
		materials.POST("/:id/lots", materialHandler.Receive)
		materials.POST("/:id/resync", materialHandler.Resync)
		materials.GET("/:id/cost", costingHandler.Cost)
		materials.POST("/:id/consume", costingHandler.Consume)
	}

	api.POST("/sales/complete", documentHandler.CompleteSale)
	api.POST("/production-orders/complete", documentHandler.CompleteOrder)

	return router
}
