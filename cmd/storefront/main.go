package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/bigelephant/storefront/internal/app"
	"github.com/bigelephant/storefront/internal/audit"
	audithttp "github.com/bigelephant/storefront/internal/audit/http"
	"github.com/bigelephant/storefront/internal/auth"
	"github.com/bigelephant/storefront/internal/catalog"
	"github.com/bigelephant/storefront/internal/observability"
	"github.com/bigelephant/storefront/internal/orders"
	"github.com/bigelephant/storefront/internal/platform/cache"
	"github.com/bigelephant/storefront/internal/platform/db"
	"github.com/bigelephant/storefront/internal/rbac"
	"github.com/bigelephant/storefront/internal/shared"
	"github.com/bigelephant/storefront/internal/users"
	"github.com/bigelephant/storefront/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, dbpool, logger); err != nil {
			logger.Error("migrate", slog.Any("error", err))
			os.Exit(1)
		}
	}

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	metrics := observability.NewMetrics()

	rbacService := rbac.NewService(dbpool)
	rbacMiddleware := rbac.Middleware{Logger: logger}

	authService := auth.NewService(auth.NewRepository(dbpool), rbacService, sessionManager)
	authHandler := auth.NewHandler(logger, authService, sessionManager, rbacMiddleware)

	catalogCache := catalog.NewCache(redisClient, cfg.CatalogCacheTTL, logger)
	catalogService := catalog.NewService(catalog.NewRepository(dbpool), catalogCache, logger)
	catalogHandler := catalog.NewHandler(catalogService, logger, rbacMiddleware)

	jobClient := jobs.NewClient(cfg.Redis().AsynqOpt())
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	ordersService := orders.NewService(orders.NewRepository(dbpool), auditLogger, orders.Hooks{
		Idempotency: idempotencyStore,
		Catalog:     catalogService,
		Events:      jobClient,
		Metrics:     metrics,
		Logger:      logger,
	})
	ordersHandler := orders.NewHandler(ordersService, logger, rbacMiddleware, cfg.OrderRateLimitPerMinute)

	usersHandler := users.NewHandler(logger, users.NewService(users.NewRepository(dbpool), auditLogger), rbacMiddleware)
	auditHandler := audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), rbacMiddleware)

	inspector := asynq.NewInspector(cfg.Redis().AsynqOpt())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Sessions:       sessionManager,
		Metrics:        metrics,
		Database:       dbpool,
		AuthHandler:    authHandler,
		CatalogHandler: catalogHandler,
		OrdersHandler:  ordersHandler,
		UsersHandler:   usersHandler,
		AuditHandler:   auditHandler,
		JobHandler:     jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
