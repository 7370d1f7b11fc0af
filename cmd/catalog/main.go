// cmd/catalog/main.go
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"toolrental/internal/catalog"
	"toolrental/internal/clients"
	"toolrental/internal/config"
	"toolrental/internal/database"
	"toolrental/internal/httpapi"
	"toolrental/internal/logger"
	"toolrental/internal/recorder"
	"toolrental/internal/tracing"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("catalog", os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic(err)
	}
	if err := logger.Initialize(cfg.Log.Level, cfg.Log.Format); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("Catalog service failed", zap.Error(err))
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

	rec := recorder.New(clients.NewKardexClient(cfg.Services.Kardex, cfg.Clients.Timeout), cfg.Recorder)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := rec.Stop(stopCtx); err != nil {
			logger.Warn("Recorder did not drain", zap.Error(err))
		}
	}()

	svc := catalog.NewService(db, rec)

	r := httpapi.NewRouter()
	catalog.NewHandler(svc).Routes(r)

	logger.Info("🚀 Starting Catalog Service", zap.String("port", cfg.Server.Port))
	return httpapi.Serve(cfg.Addr(), r, cfg.Server.ShutdownTimeout)
}
