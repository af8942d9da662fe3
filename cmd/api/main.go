package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stocklinehq/stockline-backend/api/routes"
	"github.com/stocklinehq/stockline-backend/internal/allocation"
	"github.com/stocklinehq/stockline-backend/internal/damaged"
	"github.com/stocklinehq/stockline-backend/internal/inventory"
	"github.com/stocklinehq/stockline-backend/internal/movements"
	"github.com/stocklinehq/stockline-backend/internal/orders"
	"github.com/stocklinehq/stockline-backend/internal/stock"
	"github.com/stocklinehq/stockline-backend/pkg/config"
	"github.com/stocklinehq/stockline-backend/pkg/db"
	"github.com/stocklinehq/stockline-backend/pkg/logger"
	"github.com/stocklinehq/stockline-backend/pkg/metrics"
	"github.com/stocklinehq/stockline-backend/pkg/migrate"
	"github.com/stocklinehq/stockline-backend/pkg/outbox"
	"github.com/stocklinehq/stockline-backend/pkg/redis"
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

	registry := prometheus.NewRegistry()

	movementsService, err := movements.NewService(movements.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create movements service", err)
		os.Exit(1)
	}

	stockService, err := stock.NewService(stock.NewRepository(dbClient.DB()), dbClient, redisClient, cfg.Inventory, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create stock service", err)
		os.Exit(1)
	}

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)

	batchRepo := inventory.NewRepository(dbClient.DB())
	inventoryService, err := inventory.NewService(batchRepo, dbClient, stockService, movementsService, outboxService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	engine, err := allocation.NewEngine(batchRepo, stockService, movementsService, outboxService, metrics.NewAllocationMetrics(registry), cfg.Inventory)
	if err != nil {
		logg.Error(context.Background(), "failed to create allocation engine", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient, engine, stockService, outboxService, cfg.Inventory, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	damagedService, err := damaged.NewService(damaged.NewRepository(dbClient.DB()), batchRepo, dbClient, stockService, movementsService, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create damaged goods service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:    cfg,
			Logger:    logg,
			DB:        dbClient,
			Redis:     redisClient,
			Registry:  registry,
			Inventory: inventoryService,
			Stock:     stockService,
			Movements: movementsService,
			Orders:    ordersService,
			Damaged:   damagedService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
