package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/heartbeam/heartbeam/internal/cache"
	"github.com/heartbeam/heartbeam/internal/config"
	"github.com/heartbeam/heartbeam/internal/notify"
)

// AppContext holds the shared dependencies (DB, Redis, config, logger,
// notification sink) injected into every service.
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Config     *config.Config
	Logger     *slog.Logger
	Notifier   notify.Sink
}

// New creates a new AppContext. A nil notifier falls back to the
// log-backed sink.
func New(db *gorm.DB, rdb *cache.RedisCache, cfg *config.Config, logger *slog.Logger, notifier notify.Sink) *AppContext {
	if notifier == nil {
		notifier = notify.NewLogSink(logger)
	}
	return &AppContext{
		DB:         db,
		RedisCache: rdb,
		Config:     cfg,
		Logger:     logger,
		Notifier:   notifier,
	}
}
