package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"checkout/internal/handler"
	"checkout/internal/middleware"
	"checkout/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	OrderHandler     *handler.OrderHandler
	PaymentHandler   *handler.PaymentHandler
	TestCardHandler  *handler.TestCardHandler
	APILogHandler    *handler.APILogHandler
	MetricsHandler   *handler.MetricsHandler
	LogRecorder      middleware.LogRecorder
	IdempotencyStore redis.IdempotencyStoreInterface
	NewRelicApp      *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.CorrelationMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
		router.Use(middleware.NewRelicAttributesMiddleware())
	}

	router.Use(middleware.APILogMiddleware(deps.LogRecorder))
	router.Use(middleware.IdempotencyMiddleware(deps.IdempotencyStore))

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	router.POST("/orders", deps.OrderHandler.CreateOrder)

	payments := router.Group("/payments")
	{
		payments.GET("", deps.PaymentHandler.GetAll)
		payments.GET("/:id", deps.PaymentHandler.GetPayment)
		payments.POST("/:id/pay", deps.PaymentHandler.Pay)
		payments.POST("/:id/verify-3ds", deps.PaymentHandler.Verify3DS)
		payments.POST("/:id/cancel", deps.PaymentHandler.Cancel)
		payments.POST("/:id/refund", deps.PaymentHandler.Refund)
		payments.GET("/:id/attempts", deps.PaymentHandler.GetAttempts)
		payments.GET("/:id/receipt", deps.PaymentHandler.GetReceipt)
	}

	router.GET("/test-cards", deps.TestCardHandler.GetAll)

	router.GET("/api-logs", deps.APILogHandler.GetAll)
	router.GET("/api-logs/stats", deps.APILogHandler.GetStats)

	router.GET("/metrics", deps.MetricsHandler.GetSummary)

	return router
}
