package main

import (
	"context"
	"net/http"

	"github.com/amorhq/amor-core/internal/app"
	"github.com/amorhq/amor-core/internal/cache"
	"github.com/amorhq/amor-core/internal/config"
	"github.com/amorhq/amor-core/internal/db"
	"github.com/amorhq/amor-core/internal/jobs"
	"github.com/amorhq/amor-core/internal/logger"
	"github.com/amorhq/amor-core/internal/media"
	"github.com/amorhq/amor-core/internal/realtime"
	"github.com/amorhq/amor-core/internal/server"
	"github.com/amorhq/amor-core/internal/service/chat"
	"github.com/amorhq/amor-core/internal/service/discover"
	"github.com/amorhq/amor-core/internal/service/economy"
	"github.com/amorhq/amor-core/internal/service/match"
	"github.com/amorhq/amor-core/internal/service/notify"
	"github.com/amorhq/amor-core/internal/service/presence"
	"github.com/amorhq/amor-core/internal/service/profile"
	"github.com/amorhq/amor-core/internal/service/room"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	ctx := context.Background()
	if err := redisCache.Ping(ctx); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}
	bus := realtime.NewBus(redisCache.Client, log)

	// Media storage: in-memory for development, S3-compatible otherwise.
	var uploader media.Uploader
	if cfg.App.ENV == "development" {
		uploader = media.NewMemoryStore()
	} else {
		uploader, err = media.NewS3Store(ctx, cfg)
		if err != nil {
			log.Error("failed to init media storage", "err", err)
			return
		}
	}

	appCtx := app.New(database, redisCache, bus, uploader, log, cfg)

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	tracker := presence.NewTracker(appCtx)

	runner := jobs.NewRunner(appCtx, tracker)
	if err := runner.Start(); err != nil {
		log.Error("failed to start background jobs", "err", err)
		return
	}
	defer func() {
		if err := runner.Stop(); err != nil {
			log.Warn("job shutdown", "err", err)
		}
	}()

	srv := server.New(
		appCtx,
		profile.NewService(appCtx),
		discover.NewService(appCtx),
		match.NewService(appCtx),
		chat.NewService(appCtx),
		notify.NewService(appCtx),
		economy.NewService(appCtx),
		room.NewService(appCtx),
		tracker,
	)

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		log.Error("http server stopped", "err", err)
	}
}
