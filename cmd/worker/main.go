package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/meridian-data/meridian/internal/app"
	"github.com/meridian-data/meridian/internal/authz"
	"github.com/meridian-data/meridian/internal/catalog"
	"github.com/meridian-data/meridian/internal/elevation"
	"github.com/meridian-data/meridian/internal/platform/db"
	"github.com/meridian-data/meridian/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}

	catalogRepo := catalog.NewRepository(pool)
	resolver := authz.NewResolver(catalogRepo)
	policyRepo := authz.NewPolicyRepository(pool)
	decisionCache := authz.NewDecisionCache(redisClient, cfg.DecisionCacheTTL)
	engine := authz.NewEngine(policyRepo, resolver, decisionCache, logger)

	elevationRepo := elevation.NewRepository(pool)
	elevationService := elevation.NewService(logger, elevationRepo, engine, cfg.AdminElevationWindow)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskAdminSweep, Handler: jobs.NewAdminSweepHandler(elevationService, logger)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: jobs.AdminSweepSpec, Task: jobs.NewAdminSweepTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
