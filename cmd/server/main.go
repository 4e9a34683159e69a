package main

import (
	"context"

	"github.com/heartbeam/heartbeam/internal/app"
	"github.com/heartbeam/heartbeam/internal/cache"
	"github.com/heartbeam/heartbeam/internal/config"
	"github.com/heartbeam/heartbeam/internal/db"
	"github.com/heartbeam/heartbeam/internal/logger"
	"github.com/heartbeam/heartbeam/internal/server"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L() // slog.Logger pointer

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	// Shared dependency bundle for the service registrars.
	appCtx := app.New(database, redisCache, cfg, log, nil)

	registrars := []server.Registrar{
		server.NewServiceSet(appCtx),
	}

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	addr := cfg.GRPC.Host + ":" + cfg.GRPC.Port
	log.Info("starting gRPC server", "addr", addr)

	if err := server.StartGRPCServer(cfg, registrars...); err != nil {
		log.Error("failed to start gRPC server", "err", err)
	}
}
