package app

import (
	"log/slog"

	"github.com/amorhq/amor-core/internal/cache"
	"github.com/amorhq/amor-core/internal/config"
	"github.com/amorhq/amor-core/internal/media"
	"github.com/amorhq/amor-core/internal/realtime"
	"gorm.io/gorm"
)

// AppContext holds shared dependencies (DB, Redis, realtime bus, media
// store, logger, config). Services receive it explicitly instead of
// reaching for ambient globals.
type AppContext struct {
	DB     *gorm.DB
	Cache  *cache.RedisCache
	Bus    *realtime.Bus
	Media  media.Uploader
	Logger *slog.Logger
	Cfg    *config.Config
}

// New creates a new AppContext.
func New(database *gorm.DB, rdb *cache.RedisCache, bus *realtime.Bus, uploader media.Uploader, logger *slog.Logger, cfg *config.Config) *AppContext {
	return &AppContext{
		DB:     database,
		Cache:  rdb,
		Bus:    bus,
		Media:  uploader,
		Logger: logger,
		Cfg:    cfg,
	}
}
