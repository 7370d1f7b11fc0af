// cmd/kardex/main.go
package main

import (
	"context"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"toolrental/internal/clients"
	"toolrental/internal/config"
	"toolrental/internal/database"
	"toolrental/internal/httpapi"
	"toolrental/internal/kardex"
	"toolrental/internal/logger"
	"toolrental/internal/tracing"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("kardex", os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic(err)
	}
	if err := logger.Initialize(cfg.Log.Level, cfg.Log.Format); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("Kardex service failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	shutdownTracing, err := tracing.Init(ctx, cfg.Service, cfg.Tracing.Endpoint)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	rdb := database.OpenRedis(ctx, cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}

	var users *clients.UserClient
	if cfg.Services.Users != "" {
		users = clients.NewUserClient(cfg.Services.Users, cfg.Clients.Timeout)
	}
	directory := clients.NewDirectory(
		clients.NewCatalogClient(cfg.Services.Catalog, cfg.Clients.Timeout),
		clients.NewCustomerClient(cfg.Services.Customers, cfg.Clients.Timeout),
		users,
	)

	svc := kardex.NewService(sqlx.NewDb(db, "postgres"), directory, kardex.NewUnitCache(rdb, cfg.Redis.TTL))

	r := httpapi.NewRouter()
	kardex.NewHandler(svc).Routes(r)

	logger.Info("🚀 Starting Kardex Service", zap.String("port", cfg.Server.Port))
	return httpapi.Serve(cfg.Addr(), r, cfg.Server.ShutdownTimeout)
}
