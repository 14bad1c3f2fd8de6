// Package testutil wires an isolated test environment: in-memory SQLite,
// a miniredis instance, a discarding logger and an in-memory media store.
// Each test gets its own copies.
package testutil

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/amorhq/amor-core/internal/app"
	"github.com/amorhq/amor-core/internal/cache"
	"github.com/amorhq/amor-core/internal/config"
	"github.com/amorhq/amor-core/internal/db"
	"github.com/amorhq/amor-core/internal/media"
	"github.com/amorhq/amor-core/internal/realtime"
)

// NewAppContext builds a fully wired AppContext on in-memory backends.
// The returned miniredis is exposed for tests that manipulate time or
// keys directly. Everything is cleaned up with the test.
func NewAppContext(t *testing.T) (*app.AppContext, *miniredis.Miniredis) {
	t.Helper()

	// In-memory SQLite, one schema per test
	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.Migrate(dbase))

	// Fake Redis
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	redisCache := cache.NewRedisCache(cfg)
	t.Cleanup(func() { redisCache.Client.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil)) // discard logs in tests
	bus := realtime.NewBus(redisCache.Client, log)

	appCtx := app.New(dbase, redisCache, bus, media.NewMemoryStore(), log, cfg)
	return appCtx, mr
}

// CreateProfile inserts one profile row and returns it.
func CreateProfile(t *testing.T, appCtx *app.AppContext, handle, pool string, age int, interests []string) *db.Profile {
	t.Helper()
	p := &db.Profile{
		Handle:       handle,
		Name:         handle,
		PasswordHash: "x",
		Age:          age,
		AgePool:      pool,
		Interests:    db.StringList(interests),
		Onboarded:    true,
		Stars:        500,
	}
	require.NoError(t, appCtx.DB.Create(p).Error)
	return p
}
