// cmd/loans/main.go
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"toolrental/internal/clients"
	"toolrental/internal/config"
	"toolrental/internal/database"
	"toolrental/internal/eventstore"
	"toolrental/internal/httpapi"
	"toolrental/internal/jobs"
	"toolrental/internal/loan"
	"toolrental/internal/logger"
	"toolrental/internal/recorder"
	"toolrental/internal/tracing"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("loans", os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic(err)
	}
	if err := logger.Initialize(cfg.Log.Level, cfg.Log.Format); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("Loan service failed", zap.Error(err))
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

	svc := loan.NewService(
		db,
		eventstore.NewEventStore(db),
		clients.NewCatalogClient(cfg.Services.Catalog, cfg.Clients.Timeout),
		clients.NewCustomerClient(cfg.Services.Customers, cfg.Clients.Timeout),
		rec,
	)

	scheduler := jobs.NewScheduler(jobs.NewJobRunner(svc, cfg))
	scheduler.Start()
	defer scheduler.Stop()

	r := httpapi.NewRouter()
	loan.NewHandler(svc).Routes(r)

	logger.Info("🚀 Starting Loan Service", zap.String("port", cfg.Server.Port))
	return httpapi.Serve(cfg.Addr(), r, cfg.Server.ShutdownTimeout)
}
