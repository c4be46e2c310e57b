package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	invoicingapp "github.com/clinicerp/backend/internal/application/invoicing"
	"github.com/clinicerp/backend/internal/bootstrap"
	"github.com/clinicerp/backend/internal/infrastructure/cache"
	"github.com/clinicerp/backend/internal/infrastructure/event"
	"github.com/clinicerp/backend/internal/infrastructure/logger"
	"github.com/clinicerp/backend/internal/infrastructure/scheduler"
	"github.com/clinicerp/backend/internal/infrastructure/storage"
	"github.com/clinicerp/backend/internal/infrastructure/telemetry"
	"github.com/clinicerp/backend/internal/interfaces/http/handler"
	"github.com/clinicerp/backend/internal/interfaces/http/middleware"
	"github.com/clinicerp/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := bootstrap.LoadConfig("")
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := bootstrap.NewLogger(cfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()

	providers, err := telemetry.NewProviders(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsEnabled:    cfg.Telemetry.MetricsEnabled,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		LogsEnabled:       cfg.Telemetry.LogsEnabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log = providers.BridgeLogger(log, logger.ParseLevel(cfg.Log.Level))

	log.Info("Starting clinic invoicing",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	settings, err := bootstrap.InvoicingSettings(cfg.Invoicing)
	if err != nil {
		log.Fatal("Invalid invoicing configuration", zap.Error(err))
	}

	meter := providers.Meter("clinic-invoicing")
	metrics, err := telemetry.NewInvoicingMetrics(meter)
	if err != nil {
		log.Fatal("Failed to create invoicing metrics", zap.Error(err))
	}

	db, err := bootstrap.OpenDatabase(cfg, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Payment idempotency keys: Redis when enabled, process memory otherwise
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() {
		_ = idempotencyStore.Close()
	}()

	archive, err := storage.NewReportArchive(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to create report archive", zap.Error(err))
	}

	// Domain events are delivered in-process after commit
	eventBus := event.NewInMemoryEventBus(log)
	eventBus.Subscribe(event.NewAuditLogHandler(log))
	// one alert per sequence per day, however many allocations cross the threshold
	eventBus.Subscribe(event.NewIdempotentHandler(
		invoicingapp.NewSequenceRunningLowHandler(log),
		idempotencyStore,
		log,
		event.WithKeyFunc(event.ByAggregate),
		event.WithWindow(24*time.Hour),
	))

	repos := bootstrap.NewRepositories(db)
	services := bootstrap.NewServices(repos, bootstrap.Dependencies{
		Publisher:   eventBus,
		Idempotency: idempotencyStore,
		Archive:     archive,
		Metrics:     metrics,
	}, settings, log)

	// Monthly close drafts the previous period's 606/607 for every tenant
	var closeTrigger *scheduler.MonthlyCloseTrigger
	var closeScheduler *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		closeScheduler, err = scheduler.NewScheduler(scheduler.Config{
			MaxConcurrentJobs: cfg.Scheduler.MaxConcurrentJobs,
			JobTimeout:        cfg.Scheduler.JobTimeout,
			RetryAttempts:     cfg.Scheduler.RetryAttempts,
			RetryDelay:        cfg.Scheduler.RetryDelay,
		}, scheduler.CloseExecutor(services.Reports), log)
		if err != nil {
			log.Fatal("Failed to create scheduler", zap.Error(err))
		}
		if err := closeScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		closeTrigger = scheduler.NewMonthlyCloseTrigger(scheduler.TriggerConfig{
			CloseDay:      cfg.Scheduler.CloseDay,
			CheckInterval: cfg.Scheduler.CheckInterval,
			Location:      settings.Location,
		}, closeScheduler, repos.Sequences, log)
		if err := closeTrigger.Start(ctx); err != nil {
			log.Fatal("Failed to start monthly close trigger", zap.Error(err))
		}
		log.Info("Monthly close scheduled", zap.Int("close_day", cfg.Scheduler.CloseDay))
	}

	// Set Gin mode based on environment
	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order:
	// RequestID, Recovery, Tracing, Logger, Security headers, CORS, BodyLimit,
	// Timeout, Tenant, span attributes and metrics
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     providers.IsEnabled(),
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(logger.GinMiddleware(log, "/health"))
	engine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	if cfg.HTTP.RequestTimeout > 0 {
		engine.Use(middleware.Timeout(cfg.HTTP.RequestTimeout))
	}

	tenantConfig := middleware.DefaultTenantConfig()
	tenantConfig.Logger = log
	engine.Use(middleware.TenantMiddlewareWithConfig(tenantConfig))
	engine.Use(middleware.TracingAttributeInjector())
	engine.Use(middleware.HTTPMetrics(meter))

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version,
		map[string]handler.HealthChecker{"database": db}, log)
	engine.GET("/health", systemHandler.Health)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(router.NewInvoicingRoutes(router.InvoicingHandlers{
		Invoice:      handler.NewInvoiceHandler(services.Invoices, log),
		Payment:      handler.NewPaymentHandler(services.Payments, log),
		Quotation:    handler.NewQuotationHandler(services.Quotations, log),
		Sequence:     handler.NewSequenceHandler(services.Sequences, log),
		SupplierBill: handler.NewSupplierBillHandler(services.SupplierBills, log),
		Report:       handler.NewReportHandler(services.Reports, log),
	}))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if closeTrigger != nil {
		if err := closeTrigger.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop monthly close trigger", zap.Error(err))
		}
		if err := closeScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Failed to stop scheduler", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Failed to drain event bus", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to flush telemetry", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
