package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"workshop/internal/core/security"
	"workshop/internal/domain/adjustment"
	"workshop/internal/domain/billing"
	"workshop/internal/domain/catalog"
	"workshop/internal/domain/material"
	"workshop/internal/domain/opname"
	"workshop/internal/domain/pricing"
	"workshop/internal/domain/registers/stock"
	"workshop/internal/domain/workorder"
	"workshop/internal/infrastructure/http/v1/dto"
	"workshop/internal/infrastructure/http/v1/handlers"
	"workshop/internal/infrastructure/http/v1/middleware"
	"workshop/pkg/logger"
)

// Services are the domain services exposed over HTTP.
type Services struct {
	Catalog     *catalog.Service
	Prices      *pricing.Service
	WorkOrders  *workorder.Service
	Billings    *billing.Service
	Opnames     *opname.Service
	Adjustments *adjustment.Service
	Stock       *stock.Service

	MaterialIssues  *material.IssueService
	MaterialReturns *material.ReturnService
}

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Mode is the gin mode (debug, release, test). Empty means release.
	Mode string

	Logger       *logger.Logger
	JWTValidator middleware.JWTValidator

	// Idempotency guards mutating requests carrying X-Idempotency-Key.
	// Optional.
	Idempotency middleware.IdempotencyStore

	// Metrics instruments requests; MetricsHandler serves /metrics. Optional.
	Metrics        *middleware.HTTPMetrics
	MetricsHandler http.Handler

	Health   *handlers.HealthHandler
	Services Services
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) (*gin.Engine, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	if err := dto.RegisterValidators(); err != nil {
		return nil, err
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(log))
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Handler())
	}
	router.Use(middleware.ErrorHandler())

	if cfg.Health != nil {
		health := router.Group("/health")
		health.GET("/live", cfg.Health.Live)
		health.GET("/ready", cfg.Health.Ready)
		health.GET("/info", cfg.Health.Info)
	}
	if cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(cfg.JWTValidator))
	if cfg.Idempotency != nil {
		api.Use(middleware.Idempotency(cfg.Idempotency))
	}

	base := handlers.NewBaseHandler()
	registerCatalogRoutes(api, base, cfg.Services)
	registerPriceRoutes(api, base, cfg.Services)
	registerWorkOrderRoutes(api, base, cfg.Services)
	registerBillingRoutes(api, base, cfg.Services)
	registerStockDocumentRoutes(api, base, cfg.Services)
	registerStockRoutes(api, base, cfg.Services)

	return router, nil
}

func registerCatalogRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	if svc.Catalog == nil {
		return
	}
	h := handlers.NewCatalogHandler(base, svc.Catalog)
	parts := rg.Group("/parts")
	parts.GET("", middleware.RequirePermission(security.PermStockRead), h.ListParts)
	parts.GET("/barcode/:barcode", middleware.RequirePermission(security.PermStockRead), h.PartFromBarcode)
	parts.GET("/:code", middleware.RequirePermission(security.PermStockRead), h.GetPart)
	rg.PUT("/catalog/item-link", middleware.RequirePermission(security.PermPriceWrite), h.LinkItem)
}

func registerPriceRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	if svc.Prices == nil {
		return
	}
	h := handlers.NewPriceHandler(base, svc.Prices)
	prices := rg.Group("/prices")
	prices.GET("/resolve", middleware.RequirePermission(security.PermPriceRead), h.Resolve)
	RegisterDocumentRoutes(prices, h, "price")
	prices.POST("/:id/activate", middleware.RequirePermission(security.PermPriceWrite), h.Activate)
	prices.DELETE("/:id", middleware.RequirePermission(security.PermPriceWrite), h.Delete)
}

func registerWorkOrderRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	if svc.WorkOrders == nil {
		return
	}
	h := handlers.NewWorkOrderHandler(base, svc.WorkOrders)
	orders := rg.Group("/work-orders")
	RegisterDocumentRoutes(orders, h, "work_order")
	orders.POST("/:id/status", middleware.RequirePermission(security.PermWorkOrderWrite), h.SetStatus)
	orders.GET("/:id/billing-source", middleware.RequirePermission(security.PermWorkOrderRead), h.BillingSource)
}

func registerBillingRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	if svc.Billings == nil {
		return
	}
	h := handlers.NewBillingHandler(base, svc.Billings)
	billings := rg.Group("/billings")
	billings.GET("/validation-steps", middleware.RequirePermission(security.PermBillingRead), h.ValidationSteps)
	RegisterDocumentRoutes(billings, h, "billing")
	billings.POST("/:id/approve", middleware.RequirePermission(security.PermBillingWrite), h.Approve)
	billings.POST("/:id/sales-invoice", middleware.RequirePermission(security.PermSalesInvoiceCreate), h.MakeSalesInvoice)
}

func registerStockDocumentRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	if svc.Opnames != nil {
		h := handlers.NewOpnameHandler(base, svc.Opnames)
		opnames := rg.Group("/opnames")
		RegisterDocumentRoutes(opnames, h, "stock")
		opnames.GET("/:id/variance", middleware.RequirePermission(security.PermStockRead), h.Variance)
		opnames.POST("/:id/adjustment", middleware.RequirePermission(security.PermStockSubmit), h.CreateAdjustment)
	}
	if svc.Adjustments != nil {
		h := handlers.NewAdjustmentHandler(base, svc.Adjustments)
		adjustments := rg.Group("/adjustments")
		RegisterDocumentRoutes(adjustments, h, "stock")
		adjustments.POST("/:id/post-stock-entries", middleware.RequirePermission(security.PermStockSubmit), h.RetryPosting)
	}
	if svc.MaterialIssues != nil {
		h := handlers.NewMaterialIssueHandler(base, svc.MaterialIssues)
		RegisterDocumentRoutes(rg.Group("/material-issues"), h, "stock")
		rg.GET("/work-orders/:id/issuable-parts", middleware.RequirePermission(security.PermStockRead), h.IssuableParts)
	}
	if svc.MaterialReturns != nil {
		h := handlers.NewMaterialReturnHandler(base, svc.MaterialReturns)
		RegisterDocumentRoutes(rg.Group("/material-returns"), h, "stock")
		rg.GET("/work-orders/:id/returnable-parts", middleware.RequirePermission(security.PermStockRead), h.ReturnableParts)
	}
}

func registerStockRoutes(rg *gin.RouterGroup, base *handlers.BaseHandler, svc Services) {
	if svc.Stock == nil {
		return
	}
	h := handlers.NewStockHandler(base, svc.Stock)
	st := rg.Group("/stock")
	st.GET("/balances", middleware.RequirePermission(security.PermStockRead), h.GetBalances)
	st.GET("/entries/:id", middleware.RequirePermission(security.PermStockRead), h.GetEntry)
	st.GET("/entries/:id/movements", middleware.RequirePermission(security.PermStockRead), h.GetMovements)
	st.GET("/entries/:id/cancellation", middleware.RequirePermission(security.PermStockRead), h.CheckCancellation)
	st.POST("/entries/:id/cancel", middleware.RequirePermission(security.PermStockSubmit), h.CancelEntry)
}
