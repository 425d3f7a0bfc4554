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

	"github.com/miftah-app/miftah/internal/app"
	"github.com/miftah-app/miftah/internal/auth"
	"github.com/miftah-app/miftah/internal/authz"
	"github.com/miftah-app/miftah/internal/feedback"
	"github.com/miftah-app/miftah/internal/observability"
	"github.com/miftah-app/miftah/internal/platform/cache"
	"github.com/miftah-app/miftah/internal/platform/db"
	"github.com/miftah-app/miftah/internal/rbac"
	"github.com/miftah-app/miftah/internal/roles"
	"github.com/miftah-app/miftah/internal/shared"
	"github.com/miftah-app/miftah/internal/users"
	"github.com/miftah-app/miftah/internal/view"
	"github.com/miftah-app/miftah/jobs"
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

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction(), cfg.SessionSingle)
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	auditLogger := shared.NewAuditLogger(dbpool)

	permCache := rbac.NewCache(redisClient, cfg.PermCacheTTL)
	rbacService := rbac.NewService(dbpool, permCache)
	resolver := rbac.NewResolver(rbacService, permCache)
	rbacMiddleware := rbac.Middleware{Checker: resolver, Logger: logger}

	gate := authz.NewGate(authz.DefaultPolicy(), authz.DefaultPublicPaths(), resolver, cfg.AuthzFailOpenAuthenticated, logger)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager, auditLogger, metrics)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, resolver)
	usersHandler := users.NewHandler(logger, usersService, templates, csrfManager, rbacMiddleware)

	rolesHandler := roles.NewHandler(logger, rbacService, templates, csrfManager, rbacMiddleware)
	permissionsHandler := rbac.NewPermissionsHandler(logger, rbacService, templates, csrfManager, rbacMiddleware)

	feedbackRepo := feedback.NewRepository(dbpool)
	feedbackHandler := feedback.NewHandler(logger, feedbackRepo, templates, csrfManager)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Templates:          templates,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		Gate:               gate,
		Audit:              auditLogger,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		RolesHandler:       rolesHandler,
		PermissionsHandler: permissionsHandler,
		FeedbackHandler:    feedbackHandler,
		JobHandler:         jobHandler,
		Pool:               dbpool,
		Metrics:            metrics,
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
