package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/athenaretail/pos-backend/internal/inventory"
	"github.com/athenaretail/pos-backend/internal/sessions"
	"github.com/athenaretail/pos-backend/internal/transactions"
	"github.com/athenaretail/pos-backend/internal/transactions/worker"
	"github.com/athenaretail/pos-backend/pkg/config"
	"github.com/athenaretail/pos-backend/pkg/db"
	"github.com/athenaretail/pos-backend/pkg/logger"
	"github.com/athenaretail/pos-backend/pkg/migrate"
	"github.com/athenaretail/pos-backend/pkg/outbox"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "finalizer-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "finalizer-worker"

	logg = logger.New(logger.Options{
		ServiceName: "finalizer-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	outboxRepo := outbox.NewRepository(dbClient.DB())
	outboxService := outbox.NewService(outboxRepo, logg)

	ledger, err := inventory.NewLedger(dbClient.DB(), logg, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory ledger", err)
		os.Exit(1)
	}

	transactionService, err := transactions.NewService(
		dbClient,
		transactions.NewRepository(dbClient.DB()),
		sessions.NewRepository(dbClient.DB()),
		ledger,
		outboxService,
		logg,
		nil,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create transaction service", err)
		os.Exit(1)
	}

	finalizer, err := worker.New(outboxRepo, transactionService, logg, worker.Options{
		BatchSize:    cfg.Outbox.BatchSize,
		PollInterval: cfg.Outbox.PollInterval(),
		MaxAttempts:  cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create finalizer worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting finalizer worker")

	if err := finalizer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "finalizer worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "finalizer worker shutting down gracefully")
}
