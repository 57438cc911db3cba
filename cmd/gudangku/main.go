package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gudangku/gudangku/internal/access"
	"github.com/gudangku/gudangku/internal/app"
	"github.com/gudangku/gudangku/internal/guard"
	"github.com/gudangku/gudangku/internal/identity"
	"github.com/gudangku/gudangku/internal/navigation"
	"github.com/gudangku/gudangku/internal/observability"
	"github.com/gudangku/gudangku/internal/platform/backend"
	"github.com/gudangku/gudangku/internal/platform/cache"
	"github.com/gudangku/gudangku/internal/platform/db"
	"github.com/gudangku/gudangku/internal/platform/fetch"
	"github.com/gudangku/gudangku/internal/shared"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping server startup")
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

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "gudangku_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	backendClient := backend.NewClient(cfg.BackendBaseURL, cfg.BackendTimeout)

	identityStore := identity.NewStore()
	identityRepo := identity.NewRepository(dbpool)
	identityService := identity.NewService(backendClient, identityStore, identityRepo, logger)

	snapshots := navigation.NewSnapshotStore(redisClient, cfg.SnapshotTTL)
	navigationService := navigation.NewService(navigation.ServiceConfig{
		Client:    backendClient,
		Snapshots: snapshots,
		Breaker:   fetch.NewBreaker(cfg.PrefCoolDown),
		PageLimit: cfg.CatalogPageLimit,
		Logger:    logger,
	})

	table := access.NewTable(access.DefaultRoutes())
	evaluator := access.NewEvaluator(table.PublicPaths())

	metrics := observability.NewMetrics()

	authHandler := identity.NewHandler(logger, identityService, navigationService, sessionManager)
	navigationHandler := navigation.NewHandler(logger, navigationService, identityStore, evaluator, table, sessionManager)
	guardMiddleware := guard.Middleware{
		Logger:     logger,
		Evaluator:  evaluator,
		Table:      table,
		Identities: identityStore,
		Service:    identityService,
		Metrics:    metrics,
	}

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		AuthHandler:       authHandler,
		NavigationHandler: navigationHandler,
		Guard:             guardMiddleware,
		Table:             table,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
