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

	"golang.org/x/sync/errgroup"

	"github.com/koreacc/koreacc/internal/accounts"
	"github.com/koreacc/koreacc/internal/app"
	"github.com/koreacc/koreacc/internal/closing"
	"github.com/koreacc/koreacc/internal/costcenters"
	"github.com/koreacc/koreacc/internal/doctypes"
	"github.com/koreacc/koreacc/internal/events"
	"github.com/koreacc/koreacc/internal/fiscal"
	"github.com/koreacc/koreacc/internal/ledger"
	"github.com/koreacc/koreacc/internal/platform/cache"
	"github.com/koreacc/koreacc/internal/platform/db"
	"github.com/koreacc/koreacc/internal/platform/lock"
	"github.com/koreacc/koreacc/internal/taxes"
	"github.com/koreacc/koreacc/internal/users"
	"github.com/koreacc/koreacc/jobs"
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

	var closeLocker closing.LockerPort = lock.NewLocalLocker()
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, falling back to in-process close lock", slog.Any("error", err))
	} else {
		closeLocker = lock.NewProcessLocker(redisClient, cfg.CloseLockTTL)
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	jobsClient := jobs.NewClient(cfg.RedisAddr)
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn("jobs client close", slog.Any("error", err))
		}
	}()

	accountsService := accounts.NewService(accounts.NewRepository(pool))
	accountsHandler := accounts.NewHandler(logger, accountsService)

	costCentersService := costcenters.NewService(costcenters.NewRepository(pool))
	costCentersHandler := costcenters.NewHandler(logger, costCentersService)

	fiscalService := fiscal.NewService(fiscal.NewRepository(pool))
	fiscalHandler := fiscal.NewHandler(fiscalService)

	docTypesService := doctypes.NewService(doctypes.NewRepository(pool))
	docTypesHandler := doctypes.NewHandler(docTypesService)

	taxesService := taxes.NewService(taxes.NewRepository(pool))
	taxesHandler := taxes.NewHandler(taxesService)

	ledgerService := ledger.NewService(ledger.NewRepository(pool, lock.Advisory{}), logger)
	ledgerHandler := ledger.NewHandler(ledgerService)

	flowRepo := events.NewRepository(pool)
	eventsService := events.NewService(flowRepo, taxesService, ledgerService)
	eventsHandler := events.NewHandler(eventsService, flowRepo)

	closingService := closing.NewService(
		closing.NewRepository(pool),
		fiscalService,
		docTypesService,
		ledgerService,
		closeLocker,
		jobsClient,
		logger,
	)
	closingHandler := closing.NewHandler(closingService)

	usersService := users.NewService(users.NewRepository(pool))
	usersHandler := users.NewHandler(usersService)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		AccountsHandler:    accountsHandler,
		CostCentersHandler: costCentersHandler,
		FiscalHandler:      fiscalHandler,
		DocTypesHandler:    docTypesHandler,
		TaxesHandler:       taxesHandler,
		LedgerHandler:      ledgerHandler,
		EventsHandler:      eventsHandler,
		ClosingHandler:     closingHandler,
		UsersHandler:       usersHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
