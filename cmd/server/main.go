package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/curatorhq/curator/internal/config"
	"github.com/curatorhq/curator/internal/core"
	"github.com/curatorhq/curator/internal/server"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()
	log := logger.Sugar()

	if err := godotenv.Load(); err != nil {
		log.Info("no .env file found, using environment as-is")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		if _, err := os.Stat("config/config.toml"); err == nil {
			cfgPath = "config/config.toml"
		}
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalw("failed to load configuration", "path", cfgPath, "err", err)
	}

	curator, st, closeFn, err := core.Bootstrap(context.Background(), cfg, log)
	if err != nil {
		log.Fatalw("bootstrap failed", "err", err)
	}
	defer closeFn()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := server.NewServer(cfg, curator, st, log)
	r := srv.SetupRouter()

	log.Infow("starting server", "port", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalw("server stopped", "err", err)
	}
}
