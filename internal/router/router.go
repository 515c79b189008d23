package router

import (
	"context"
	"time"

	"billpos/internal/clock"
	"billpos/internal/config"
	"billpos/internal/handler"
	"billpos/internal/middleware"
	"billpos/internal/receipt"
	"billpos/internal/repository"
	"billpos/internal/service"
	"billpos/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ReceiptSettings derives the customer receipt layout from configuration.
func ReceiptSettings(cfg *config.Config) service.ReceiptSettings {
	return service.ReceiptSettings{
		Org: receipt.Org{
			Name:         cfg.OrgName,
			AddressLines: cfg.OrgAddressLines(),
			VAT:          cfg.OrgVAT,
		},
		Symbol:      cfg.CurrencySymbol,
		Width:       cfg.ReceiptWidth,
		StoragePath: cfg.ReceiptStoragePath,
	}
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
// printers reports breaker states on /health and may be nil. ctx bounds the
// background goroutines the router owns.
func New(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client, printers handler.BreakerReporter) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit)
	limiter.StartPurge(ctx)

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.CORSOriginList()))
	r.Use(middleware.ErrorHandler())
	r.Use(limiter.Middleware())

	// ── Repositories ─────────────────────────────────────────────────────────
	store := repository.NewStore(db)
	billRepo := repository.NewBillRepository(db)
	periodRepo := repository.NewPeriodRepository(db)
	catalogRepo := repository.NewCachedCatalog(
		repository.NewCatalogRepository(db), rdb,
		time.Duration(cfg.CatalogCacheTTLSecond)*time.Second,
	)

	// ── Services ─────────────────────────────────────────────────────────────
	// Dispatcher, injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)
	clk := clock.System{}
	printLogRepo := repository.NewPrintLogRepository(db, clk)
	settings := ReceiptSettings(cfg)

	billSvc := service.NewBillService(store, billRepo, periodRepo, catalogRepo, dispatcher, clk, cfg.CashPaymentType)
	voidSvc := service.NewVoidService(store, billRepo, dispatcher, clk, cfg.RequireVoidReason)
	printSvc := service.NewPrintService(store, billRepo, printLogRepo, dispatcher, clk)
	periodSvc := service.NewPeriodService(store, periodRepo, billRepo, clk, settings)
	receiptSvc := service.NewReceiptService(billRepo, dispatcher, clk, settings)

	// ── Handlers ─────────────────────────────────────────────────────────────
	billsH := handler.NewBillsHandler(billSvc, voidSvc)
	periodsH := handler.NewPeriodsHandler(periodSvc)
	printsH := handler.NewPrintsHandler(printSvc, rdb)
	receiptsH := handler.NewReceiptsHandler(receiptSvc)
	catalogH := handler.NewCatalogHandler(catalogRepo, rdb)

	// ── Routes ───────────────────────────────────────────────────────────────
	r.GET("/health", handler.Health(db, rdb, printers))

	v1 := r.Group("/v1")
	{
		periods := v1.Group("/periods")
		{
			periods.POST("", periodsH.Open)
			periods.GET("", periodsH.List)
			periods.GET("/current", periodsH.Current)
			periods.POST("/:id/close", periodsH.Close)
			periods.GET("/:id/report", periodsH.Report)
		}

		bills := v1.Group("/bills")
		{
			bills.POST("", billsH.Open)
			bills.GET("", billsH.ListOpen)
			bills.GET("/:id", billsH.Get)
			bills.GET("/:id/summary", billsH.Summary)
			bills.POST("/:id/close", billsH.Close)

			bills.POST("/:id/items", billsH.AddItem)
			bills.DELETE("/:id/items/:item_id", billsH.RemoveItem)
			bills.POST("/:id/items/:item_id/void", billsH.Void)
			bills.POST("/:id/items/:item_id/comp", billsH.Comp)
			bills.POST("/:id/store", billsH.Store)

			bills.POST("/:id/discounts", billsH.AddDiscount)
			bills.DELETE("/:id/discounts/:discount_id", billsH.RemoveDiscount)
			bills.POST("/:id/payments", billsH.AddPayment)
			bills.DELETE("/:id/payments/:payment_id", billsH.RemovePayment)

			bills.POST("/:id/print/resend", printsH.ResendErrored)

			bills.GET("/:id/receipt", receiptsH.Lines)
			bills.GET("/:id/receipt/pdf", receiptsH.PDF)
			bills.POST("/:id/receipt/email", receiptsH.Email)
		}

		v1.POST("/print-logs/:id/resend", printsH.Resend)
		v1.GET("/print-jobs/dead", printsH.DeadLetters)

		catalog := v1.Group("/catalog")
		{
			catalog.GET("/price-groups", catalogH.PriceGroups)
			catalog.GET("/printers", catalogH.Printers)
			catalog.DELETE("/cache", catalogH.Invalidate)
		}
	}

	// Swagger UI, only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
