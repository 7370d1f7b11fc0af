// cmd/customers/main.go
package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"toolrental/internal/clients"
	"toolrental/internal/config"
	"toolrental/internal/customer"
	"toolrental/internal/database"
	"toolrental/internal/httpapi"
	"toolrental/internal/logger"
	"toolrental/internal/tracing"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("customers", os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic(err)
	}
	if err := logger.Initialize(cfg.Log.Level, cfg.Log.Format); err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("Customer service failed", zap.Error(err))
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

	svc := customer.NewService(db, clients.NewLoanClient(cfg.Services.Loans, cfg.Clients.Timeout))

	r := httpapi.NewRouter()
	customer.NewHandler(svc).Routes(r)

	logger.Info("🚀 Starting Customer Service", zap.String("port", cfg.Server.Port))
	return httpapi.Serve(cfg.Addr(), r, cfg.Server.ShutdownTimeout)
}
