package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/koreacc/koreacc/internal/app"
	"github.com/koreacc/koreacc/internal/closing"
	"github.com/koreacc/koreacc/internal/doctypes"
	"github.com/koreacc/koreacc/internal/fiscal"
	"github.com/koreacc/koreacc/internal/ledger"
	"github.com/koreacc/koreacc/internal/platform/cache"
	"github.com/koreacc/koreacc/internal/platform/db"
	"github.com/koreacc/koreacc/internal/platform/lock"
	"github.com/koreacc/koreacc/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx := context.Background()

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

	// asynq needs redis to serve its queues, so the worker cannot start
	// without it.
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

	jobsClient := jobs.NewClient(cfg.RedisAddr)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	fiscalService := fiscal.NewService(fiscal.NewRepository(pool))
	docTypesService := doctypes.NewService(doctypes.NewRepository(pool))
	ledgerService := ledger.NewService(ledger.NewRepository(pool, lock.Advisory{}), logger)
	processLocker := lock.NewProcessLocker(redisClient, cfg.CloseLockTTL)

	closingService := closing.NewService(
		closing.NewRepository(pool),
		fiscalService,
		docTypesService,
		ledgerService,
		processLocker,
		jobsClient,
		logger,
	)

	worker := jobs.NewWorker(cfg.RedisAddr, closingService, logger)

	// asynq handles SIGINT and SIGTERM itself, Run blocks until shutdown.
	if err := worker.Run(); err != nil {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
