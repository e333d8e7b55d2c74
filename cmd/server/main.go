package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	integrationapp "github.com/storefront/backend/internal/application/integration"
	"github.com/storefront/backend/internal/domain/integration"
	"github.com/storefront/backend/internal/infrastructure/cache"
	"github.com/storefront/backend/internal/infrastructure/config"
	"github.com/storefront/backend/internal/infrastructure/ecommerce"
	"github.com/storefront/backend/internal/infrastructure/logger"
	"github.com/storefront/backend/internal/infrastructure/persistence"
	"github.com/storefront/backend/internal/infrastructure/scheduler"
	"github.com/storefront/backend/internal/infrastructure/telemetry"
	"github.com/storefront/backend/internal/interfaces/http/handler"
	"github.com/storefront/backend/internal/interfaces/http/middleware"
	"github.com/storefront/backend/internal/interfaces/http/router"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Storefront Sync API
//	@version		1.0
//	@description	Multi-tenant storefront sync engine: platform webhooks, sync jobs and stock reconciliation
//	@BasePath		/api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting storefront sync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Tracing
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Database.SlowQuery)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Database.SlowQuery,
		DBSystem:        "postgresql",
	}, log)
	if err := dbTracing.Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Repositories
	accountRepo := persistence.NewGormChannelAccountRepository(db.DB)
	jobRepo := persistence.NewGormJobRepository(db.DB)
	syncLogRepo := persistence.NewGormSyncLogRepository(db.DB)
	recordStore := persistence.NewGormRecordStore(db.DB)

	// Dedupe store for webhook deliveries and stock batch keys
	idempotency, err := cache.NewIdempotencyStore(cfg.Redis, cfg.Webhook.AllowMemoryFallback, log)
	if err != nil {
		log.Fatal("Failed to initialize idempotency store", zap.Error(err))
	}
	defer func() {
		if err := idempotency.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()
	var webhookDedupe = idempotency
	if !cfg.Webhook.DedupeEnabled {
		webhookDedupe = nil
	}

	// Platform connectors
	rules, err := ecommerce.LoadRules(cfg.Connectors.RulesFile)
	if err != nil {
		log.Fatal("Failed to load platform rules", zap.Error(err))
	}
	endpoints := ecommerce.EndpointsFromConfig(cfg.Connectors)
	httpClient := &http.Client{Timeout: 60 * time.Second}
	connectors := ecommerce.NewConnectorFactory(endpoints, rules, httpClient, log)
	refresher := ecommerce.NewOAuthTokenRefresher(endpoints, httpClient)

	// Job engine
	metrics := scheduler.NewMetrics()
	var engine *scheduler.Engine
	var notifier integrationapp.JobNotifier
	if cfg.Engine.Enabled {
		executor := scheduler.NewSyncExecutor(recordStore, log)
		engine, err = scheduler.NewEngine(
			scheduler.EngineConfigFrom(cfg.Engine),
			jobRepo, syncLogRepo, accountRepo, connectors, executor, metrics, log,
		)
		if err != nil {
			log.Fatal("Failed to create job engine", zap.Error(err))
		}
		notifier = engine
	} else {
		log.Info("Job engine disabled, jobs are queued for another instance")
	}

	// Application services
	jobService := integrationapp.NewJobService(jobRepo, syncLogRepo, accountRepo, notifier, log)
	webhookService := integrationapp.NewWebhookService(integrationapp.WebhookServiceConfig{
		Accounts:           accountRepo,
		Connectors:         connectors,
		Jobs:               jobService,
		Idempotency:        webhookDedupe,
		Notifier:           notifier,
		TimestampTolerance: cfg.Webhook.TimestampTolerance,
		DedupeWindow:       cfg.Webhook.DedupeWindow,
		Logger:             log,
	})
	stockService := integrationapp.NewStockReconciliationService(integrationapp.StockReconciliationServiceConfig{
		Listings:    recordStore,
		Accounts:    accountRepo,
		Jobs:        jobService,
		Idempotency: idempotency,
		Notifier:    notifier,
		Logger:      log,
	})
	tokenRefreshService := integrationapp.NewTokenRefreshService(integrationapp.TokenRefreshServiceConfig{
		Accounts:   accountRepo,
		Refresher:  refresher,
		Connectors: connectors,
		Logs:       syncLogRepo,
		LeadTime:   cfg.TokenRefresh.LeadTime,
		Logger:     log,
	})
	accountService := integrationapp.NewAccountService(accountRepo, connectors, log)

	// The trigger also serves manual runs, so it exists even when the schedule is off
	refreshTrigger, err := scheduler.NewCronTrigger(
		scheduler.CronTriggerConfigFrom(cfg.TokenRefresh), tokenRefreshService, metrics, log,
	)
	if err != nil {
		log.Fatal("Failed to create token refresh trigger", zap.Error(err))
	}

	// Background workers
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	if engine != nil {
		if err := engine.Start(bgCtx); err != nil {
			log.Fatal("Failed to start job engine", zap.Error(err))
		}
	}
	if cfg.TokenRefresh.Enabled {
		if err := refreshTrigger.Start(bgCtx); err != nil {
			log.Fatal("Failed to start token refresh trigger", zap.Error(err))
		}
	}

	// HTTP handlers
	webhookHandler := handler.NewWebhookHandler(webhookService, cfg.Webhook.MaxPayloadBytes)
	jobHandler := handler.NewJobHandler(jobService)
	stockHandler := handler.NewStockHandler(stockService)
	adminHandler := handler.NewSyncAdminHandler(refreshTrigger, accountService)

	checks := map[string]handler.HealthCheck{
		"database": db.Ping,
	}
	if pinger, ok := idempotency.(interface{ Ping(context.Context) error }); ok {
		checks["redis"] = pinger.Ping
	}
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, checks)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	httpEngine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := httpEngine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Tracing - One server span per request
	// 3. Logger and Recovery
	// 4. Security headers and CORS
	// 5. BodyLimit - Limit request body size
	// 6. RateLimit - Per client IP, webhooks exempt (if enabled)
	// 7. Metrics - Prometheus request counters
	tracingCfg := middleware.DefaultTracingConfig()
	tracingCfg.Enabled = cfg.Telemetry.Enabled
	tracingCfg.ServiceName = cfg.Telemetry.ServiceName
	httpEngine.Use(middleware.RequestID())
	httpEngine.Use(middleware.Tracing(tracingCfg))
	httpEngine.Use(middleware.SpanAttributes())
	httpEngine.Use(logger.Recovery(log))
	httpEngine.Use(logger.GinMiddleware(log))
	httpEngine.Use(middleware.Secure())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	httpEngine.Use(middleware.CORS(corsConfig))

	httpEngine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		defer rateLimiter.Stop()
		// Platforms retry a throttled webhook delivery, so webhooks are exempt
		httpEngine.Use(middleware.RateLimit(rateLimiter, "/api/v1/webhooks/"))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	httpEngine.Use(middleware.NewHTTPMetrics(metrics.Registry()).Middleware())

	// Probes and scrapes stay outside API versioning
	httpEngine.GET("/health", systemHandler.Health)
	httpEngine.GET("/metrics", gin.WrapH(metrics.Handler()))

	r := router.NewRouter(httpEngine, router.WithAPIVersion("v1"))

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)

	r.Register(router.WebhookRoutes(webhookHandler, integration.SupportedPlatforms)).
		Register(router.SyncRoutes(jobHandler, stockHandler, adminHandler)).
		Register(systemRoutes)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        httpEngine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	// Stop intake before the engine so no new job is claimed mid-drain
	if cfg.TokenRefresh.Enabled {
		if err := refreshTrigger.Stop(ctx); err != nil {
			log.Error("Error stopping token refresh trigger", zap.Error(err))
		}
	}
	if engine != nil {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Engine.StopTimeout)
		defer stopCancel()
		if err := engine.Stop(stopCtx); err != nil {
			log.Error("Error stopping job engine", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}
