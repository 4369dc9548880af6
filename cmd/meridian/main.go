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
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/meridian-data/meridian/internal/app"
	"github.com/meridian-data/meridian/internal/assignments"
	"github.com/meridian-data/meridian/internal/auth"
	"github.com/meridian-data/meridian/internal/authz"
	"github.com/meridian-data/meridian/internal/catalog"
	"github.com/meridian-data/meridian/internal/elevation"
	"github.com/meridian-data/meridian/internal/platform/db"
	"github.com/meridian-data/meridian/internal/roles"
	"github.com/meridian-data/meridian/internal/users"
	"github.com/meridian-data/meridian/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	catalogRepo := catalog.NewRepository(pool)
	resolver := authz.NewResolver(catalogRepo)
	policyRepo := authz.NewPolicyRepository(pool)
	decisionCache := authz.NewDecisionCache(redisClient, cfg.DecisionCacheTTL)
	engine := authz.NewEngine(policyRepo, resolver, decisionCache, logger)
	enforcer := &authz.Enforcer{Engine: engine, Resolver: resolver, Logger: logger}

	rolesRepo := roles.NewRepository(pool)
	rolesService := roles.NewService(logger, rolesRepo, engine)

	elevationRepo := elevation.NewRepository(pool)
	elevationService := elevation.NewService(logger, elevationRepo, engine, cfg.AdminElevationWindow)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(logger, usersRepo, engine, elevationService)

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)

	catalogService := catalog.NewService(logger, catalogRepo, rolesRepo, engine)

	assignmentsRepo := assignments.NewRepository(pool)
	assignmentsService := assignments.NewService(logger, assignmentsRepo, engine, rolesService, resolver)

	// Prototype roles must exist before the first request; the sweep clears
	// anything that lapsed while the process was down.
	var g errgroup.Group
	g.Go(func() error { return rolesService.SeedPrototypes(ctx) })
	g.Go(func() error {
		_, err := elevationService.SweepExpired(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Error("startup", slog.Any("error", err))
		os.Exit(1)
	}

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
		AuthService:        authService,
		AuthHandler:        auth.NewHandler(logger, authService, enforcer),
		AuthzHandler:       authz.NewHandler(logger, engine, resolver),
		RolesHandler:       roles.NewHandler(logger, rolesService, enforcer),
		UsersHandler:       users.NewHandler(logger, usersService, enforcer),
		AssignmentsHandler: assignments.NewHandler(logger, assignmentsService, enforcer),
		ElevationHandler:   elevation.NewHandler(logger, elevationService),
		CatalogHandler:     catalog.NewHandler(logger, catalogService, enforcer),
		JobHandler:         jobHandler,
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
