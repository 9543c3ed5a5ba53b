package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"doka-backend/internal/admin"
	"doka-backend/internal/audit"
	"doka-backend/internal/auth"
	"doka-backend/internal/config"
	"doka-backend/internal/dashboard"
	"doka-backend/internal/database"
	"doka-backend/internal/inventory"
	"doka-backend/internal/ledger"
	"doka-backend/internal/logger"
	"doka-backend/internal/metrics"
	"doka-backend/internal/models"
	"doka-backend/internal/sales"
	"doka-backend/internal/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet
		zap.NewExample().Fatal("invalid configuration", zap.Error(err))
	}

	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.LogLevel,
		Environment: cfg.AppEnv,
		ServiceName: "doka-backend",
	}); err != nil {
		zap.NewExample().Fatal("logger init failed", zap.Error(err))
	}
	log := logger.GetLogger()
	defer func() { _ = log.Sync() }()
	cfg.WarnDefaults(log)

	if err := database.Init(cfg, log); err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}

	// money goes out as JSON numbers like the rest of the payload
	decimal.MarshalJSONWithoutQuotes = true

	var cache ledger.SnapshotCache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis unreachable, snapshots will be retried on each write", zap.Error(err))
		}
		cancel()
		cache = ledger.NewRedisSnapshotCache(rdb)
	}

	cat := ledger.NewCatalog(ledger.NewGormStore(database.DB), cache, log, ledger.Options{
		ConfirmWrites: cfg.ConfirmWrites,
		WriteTimeout:  cfg.WriteTimeout,
	})
	loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := cat.Load(loadCtx); err != nil {
		log.Fatal("catalog load failed", zap.Error(err))
	}
	cancel()

	app := fiber.New(fiber.Config{
		AppName:   "doka-backend",
		BodyLimit: 16 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var e *fiber.Error
			if errors.As(err, &e) {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			logger.FromCtx(c).Error("unexpected error", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "unexpected server error",
			})
		},
	})

	app.Use(recover.New())
	app.Use(logger.RequestID())
	app.Use(logger.Middleware())
	app.Use(metrics.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(cfg.CORSOriginList(), ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	app.Get("/metrics", metrics.Handler())
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "sync": cat.Status()})
	})

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/login", auth.LoginHandler(cfg))
	api.Post("/auth/worker-login", auth.WorkerLoginHandler(cfg))

	// Protected, any role
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())
	protected.Get("/locations", admin.ListLocationsHandler())
	protected.Get("/categories", inventory.ListCategoriesHandler())

	protected.Get("/products", inventory.ListProductsHandler(cat))
	protected.Get("/products/barcode/:barcode", inventory.GetProductByBarcodeHandler(cat))
	protected.Get("/products/:id", inventory.GetProductHandler(cat))

	protected.Post("/stock/restock", inventory.RestockHandler(cat))
	protected.Get("/stock/low", inventory.LowStockHandler(cat))
	protected.Get("/stock/available", inventory.AvailableHandler(cat))

	owner := auth.RequireRole(models.RoleOwner)

	protected.Post("/stock/adjust", owner, inventory.AdjustStockHandler(cat))

	protected.Post("/sales/quote", sales.QuoteHandler(cat))
	protected.Post("/sales", sales.CreateSaleHandler(cat))
	protected.Get("/sales", sales.ListSalesHandler())
	protected.Get("/sales/export.xlsx", owner, sales.ExportSalesHandler())
	protected.Get("/sales/:id", sales.GetSaleHandler())

	protected.Post("/transfers", inventory.CreateTransferHandler(cat))
	protected.Get("/transfers", inventory.ListTransfersHandler())

	protected.Get("/sync/status", inventory.SyncStatusHandler(cat))
	protected.Post("/sync", inventory.ResyncHandler(cat))

	protected.Get("/dashboard/summary", owner, dashboard.SummaryHandler(cfg, cat))
	protected.Get("/dashboard/top-products", owner, dashboard.TopProductsHandler())
	protected.Get("/dashboard/sales-chart", owner, dashboard.SalesChartHandler())

	// Shift clock: workers on themselves, owners on anyone
	self := protected.Group("/workers/:id", auth.RequireSelfOrOwner("id"))
	self.Post("/shift/start", workers.ShiftHandler(workers.ActionStart))
	self.Post("/shift/pause", workers.ShiftHandler(workers.ActionPause))
	self.Post("/shift/resume", workers.ShiftHandler(workers.ActionResume))
	self.Post("/shift/end", workers.ShiftHandler(workers.ActionEnd))
	self.Get("/shifts", workers.ListShiftsHandler())

	// Owner routes
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(owner)

	adminRoutes.Post("/locations", admin.CreateLocationHandler())
	adminRoutes.Put("/locations/:id", admin.UpdateLocationHandler())
	adminRoutes.Delete("/locations/:id", admin.DeleteLocationHandler())

	adminRoutes.Get("/admins", admin.ListAdminsHandler())
	adminRoutes.Post("/admins", admin.CreateAdminHandler())
	adminRoutes.Put("/admins/:id", admin.UpdateAdminHandler())
	adminRoutes.Delete("/admins/:id", admin.DeleteAdminHandler())
	adminRoutes.Put("/owner-credentials", admin.UpdateOwnerCredentialsHandler())

	adminRoutes.Post("/categories", inventory.CreateCategoryHandler())
	adminRoutes.Put("/categories/:id", inventory.UpdateCategoryHandler())
	adminRoutes.Delete("/categories/:id", inventory.DeleteCategoryHandler())

	adminRoutes.Post("/products", inventory.CreateProductHandler(cat))
	adminRoutes.Post("/products/import", inventory.ImportProductsHandler(cat))
	adminRoutes.Put("/products/:id", inventory.UpdateProductHandler(cat))
	adminRoutes.Delete("/products/:id", inventory.DeleteProductHandler(cat))

	adminRoutes.Get("/workers", workers.ListWorkersHandler())
	adminRoutes.Post("/workers", workers.CreateWorkerHandler())
	adminRoutes.Put("/workers/:id/toggle", workers.ToggleWorkerHandler())
	adminRoutes.Delete("/workers/:id", workers.DeleteWorkerHandler())

	adminRoutes.Get("/audit-logs", audit.ListAuditLogsHandler())

	go func() {
		log.Info("server starting", zap.String("port", cfg.HTTPPort), zap.String("env", cfg.AppEnv))
		if err := app.Listen(":" + cfg.HTTPPort); err != nil {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	cat.Close()
	log.Info("stopped", zap.Int64("pending_writes", cat.Status().PendingWrites))
}
