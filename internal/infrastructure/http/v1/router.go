// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"stockledger/internal/domain/stock"
	"stockledger/internal/infrastructure/http/v1/handlers"
	"stockledger/internal/infrastructure/http/v1/middleware"
	"stockledger/internal/infrastructure/storage/postgres"
	"stockledger/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Pool is the shared connection pool (tenants are schemas, not databases)
	Pool *postgres.Pool

	// TxManager binds units of work to tenant namespaces
	TxManager *postgres.TxManager

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Services
	Adjustments *stock.AdjustmentService
	Allocations *stock.AllocationService
	Levels      *stock.LevelService
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

	// Health endpoints (no auth, no tenant required)
	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	base := handlers.NewBaseHandler()
	stockHandler := handlers.NewStockHandler(base, cfg.Adjustments)
	allocationHandler := handlers.NewAllocationHandler(base, cfg.Allocations)
	levelHandler := handlers.NewLevelHandler(base, cfg.Levels)

	// API v1 - tenant context is resolved first, then the caller's token is
	// checked against it.
	v1 := router.Group("/api/v1")
	v1.Use(middleware.TenantContext(cfg.Pool, cfg.TxManager))
	v1.Use(middleware.Auth(cfg.JWTValidator))
	{
		stockGroup := v1.Group("/stock")
		{
			stockGroup.POST("/adjustments", stockHandler.Adjust)
			stockGroup.GET("/adjustments", stockHandler.ListAdjustments)
			stockGroup.GET("/adjustments/:id", stockHandler.GetAdjustment)

			stockGroup.POST("/receipts", stockHandler.Receive)

			stockGroup.GET("/items/:id", stockHandler.GetItem)
			stockGroup.GET("/items/:id/history", stockHandler.ItemHistory)
			stockGroup.GET("/items/:id/allocations", allocationHandler.ListByItem)

			stockGroup.POST("/allocations", allocationHandler.Allocate)
			stockGroup.GET("/allocations/:id", allocationHandler.Get)
			stockGroup.POST("/allocations/:id/release", allocationHandler.Release)

			stockGroup.GET("/levels", levelHandler.Levels)
		}
	}

	return router
}
