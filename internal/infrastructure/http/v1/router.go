// Package v1 provides HTTP API version 1.
package v1

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"posledger/internal/app"
	"posledger/internal/domain/audit"
	"posledger/internal/infrastructure/http/v1/handlers"
	"posledger/internal/infrastructure/http/v1/middleware"
	"posledger/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Services are the ledger operations exposed by the API
	Services *app.Services

	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// History serves audit trails; nil disables the history routes' data
	History audit.Reader

	// HealthChecks are pinged by /health/ready
	HealthChecks map[string]handlers.Checker

	// CORSOrigins is the allowlist; empty allows every origin
	CORSOrigins []string

	// Debug enables gin debug mode
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	middleware.UseJSONFieldNames()

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.HealthChecks)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))

	base := handlers.NewBaseHandler()
	registerInvoiceRoutes(api, base, cfg)
	registerReturnRoutes(api, base, cfg)
	registerStockRoutes(api, base, cfg)
	registerPromoRoutes(api, base, cfg)

	return router
}

func corsConfig(origins []string) cors.Config {
	c := cors.DefaultConfig()
	if len(origins) == 0 {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	c.AddAllowHeaders("Authorization", handlers.HeaderIdempotencyKey, middleware.HeaderRequestID, middleware.HeaderTraceID)
	c.AddExposeHeaders(middleware.HeaderRequestID, middleware.HeaderTraceID)
	c.MaxAge = 12 * time.Hour
	return c
}

// registerInvoiceRoutes registers invoice and payment endpoints.
func registerInvoiceRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	invoiceHandler := handlers.NewInvoiceHandler(base, cfg.Services.Invoice, cfg.Services.Returns, cfg.History)
	paymentHandler := handlers.NewPaymentHandler(base, cfg.Services.Payment)

	invoices := rg.Group("/invoices")
	{
		invoices.POST("", invoiceHandler.Create)
		invoices.GET("", invoiceHandler.List)
		invoices.GET("/number/:number", invoiceHandler.GetByNumber)
		invoices.GET("/:id", invoiceHandler.Get)
		invoices.POST("/:id/cancel", middleware.RequireManager(), invoiceHandler.Cancel)
		invoices.GET("/:id/return", invoiceHandler.GetReturn)
		invoices.GET("/:id/history", middleware.RequireManager(), invoiceHandler.History)

		invoices.POST("/:id/payments", paymentHandler.Process)
		invoices.GET("/:id/payments", paymentHandler.ListByInvoice)
	}

	rg.GET("/branches/:id/payments", paymentHandler.ListByBranch)
}

// registerReturnRoutes registers return endpoints.
func registerReturnRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewReturnHandler(base, cfg.Services.Returns, cfg.History)

	returnsGroup := rg.Group("/returns")
	{
		returnsGroup.POST("", h.Create)
		returnsGroup.GET("", h.List)
		returnsGroup.GET("/:id", h.Get)
		returnsGroup.POST("/:id/approve", middleware.RequireManager(), h.Approve)
		returnsGroup.POST("/:id/reject", middleware.RequireManager(), h.Reject)
		returnsGroup.GET("/:id/history", middleware.RequireManager(), h.History)
	}
}

// registerStockRoutes registers stock ledger endpoints.
func registerStockRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewStockHandler(base, cfg.Services.Stock)

	stockGroup := rg.Group("/stock")
	{
		stockGroup.POST("/adjustments", middleware.RequireManager(), h.Adjust)
		stockGroup.POST("/transfers", middleware.RequireManager(), h.Transfer)
		stockGroup.GET("/levels", h.GetLevels)
		stockGroup.GET("/low", h.GetLowStock)
		stockGroup.GET("/total", h.GetTotal)
		stockGroup.GET("/adjustments", h.ListAdjustments)
	}
}

// registerPromoRoutes registers promo code endpoints.
func registerPromoRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, cfg RouterConfig) {
	h := handlers.NewPromoHandler(base, cfg.Services.Promo, cfg.History)

	promos := rg.Group("/promo-codes")
	{
		promos.POST("", middleware.RequireManager(), h.Create)
		promos.GET("/active", h.ListActive)
		promos.POST("/validate", h.Validate)
		promos.GET("/:id", h.Get)
		promos.PUT("/:id", middleware.RequireManager(), h.Update)
		promos.DELETE("/:id", middleware.RequireManager(), h.Delete)
		promos.GET("/:id/history", middleware.RequireManager(), h.History)
	}
}
