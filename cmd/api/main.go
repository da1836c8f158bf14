package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/athenaretail/pos-backend/api/routes"
	"github.com/athenaretail/pos-backend/internal/cart"
	"github.com/athenaretail/pos-backend/internal/inventory"
	"github.com/athenaretail/pos-backend/internal/sessions"
	"github.com/athenaretail/pos-backend/internal/transactions"
	"github.com/athenaretail/pos-backend/pkg/config"
	"github.com/athenaretail/pos-backend/pkg/db"
	"github.com/athenaretail/pos-backend/pkg/logger"
	"github.com/athenaretail/pos-backend/pkg/migrate"
	"github.com/athenaretail/pos-backend/pkg/outbox"
	"github.com/athenaretail/pos-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	ledger, err := inventory.NewLedger(dbClient.DB(), logg, outboxService)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory ledger", err)
		os.Exit(1)
	}

	sessionRepo := sessions.NewRepository(dbClient.DB())
	sessionService, err := sessions.NewService(dbClient, sessionRepo, ledger, outboxService, logg, cfg.POS.IdleWindow, nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create session service", err)
		os.Exit(1)
	}

	cartService, err := cart.NewService(dbClient, cart.NewRepository(dbClient.DB()), sessionRepo, ledger, logg, cfg.POS.IdleWindow, nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	transactionService, err := transactions.NewService(dbClient, transactions.NewRepository(dbClient.DB()), sessionRepo, ledger, outboxService, logg, nil)
	if err != nil {
		logg.Error(context.Background(), "failed to create transaction service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			routes.Pingers{DB: dbClient, Redis: redisClient},
			sessionService,
			cartService,
			transactionService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
