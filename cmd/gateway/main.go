// cmd/gateway/main.go
package main

import (
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"toolrental/internal/config"
	"toolrental/internal/httpapi"
	"toolrental/internal/logger"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load("gateway", os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic(err)
	}
	if err := logger.Initialize(cfg.Log.Level, cfg.Log.Format); err != nil {
		panic(err)
	}
	defer logger.Sync()

	r := httpapi.NewRouter()
	if err := mount(r, routes(cfg.Services)); err != nil {
		logger.Error("Gateway misconfigured", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("API Gateway listening", zap.String("port", cfg.Server.Port))
	if err := httpapi.Serve(cfg.Addr(), r, cfg.Server.ShutdownTimeout); err != nil {
		logger.Error("API Gateway failed", zap.Error(err))
		os.Exit(1)
	}
}
