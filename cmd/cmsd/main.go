package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tenantcms/tenantcms/internal/app"
	"github.com/tenantcms/tenantcms/internal/content"
	"github.com/tenantcms/tenantcms/internal/editorial"
	"github.com/tenantcms/tenantcms/internal/identity"
	"github.com/tenantcms/tenantcms/internal/observability"
	"github.com/tenantcms/tenantcms/internal/platform/cache"
	"github.com/tenantcms/tenantcms/internal/platform/db"
	"github.com/tenantcms/tenantcms/internal/policy"
	"github.com/tenantcms/tenantcms/internal/scope"
	"github.com/tenantcms/tenantcms/internal/shared"
	"github.com/tenantcms/tenantcms/internal/workflow"
	"github.com/tenantcms/tenantcms/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	identityRepo := identity.NewRepository(dbpool)
	actorLoader := identity.NewLoader(identityRepo, identityRepo, identity.LoaderConfig{
		Size: cfg.ActorCacheSize,
		TTL:  cfg.ActorCacheTTL,
	}, logger)

	scopeResolver := scope.NewResolver(
		scope.NewRepository(dbpool),
		scope.NewCache(redisClient, cfg.ScopeCacheTTL),
		logger,
	)

	contentRepo := content.NewRepository(dbpool)
	engine := policy.NewEngine(policy.Deps{
		Content:  contentRepo,
		Profiles: identityRepo,
		Scopes:   scopeResolver,
		Observer: metrics,
		Logger:   logger,
	})

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	approvals := shared.NewApprovalRecorder(dbpool, logger)
	statusService := workflow.NewService(
		contentRepo,
		workflow.NewMachine(nil),
		approvals,
		jobClient,
		logger,
	)
	editorialHandler := editorial.NewHandler(logger, engine, statusService, scopeResolver, approvals, shared.NewIdempotencyStore(dbpool))

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		ActorLoader:      actorLoader,
		EditorialHandler: editorialHandler,
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
