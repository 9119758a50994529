package storage

import (
	"context"
	"fmt"

	"github.com/angelmondragon/rocketshoes-cart/internal/cart"
	"github.com/angelmondragon/rocketshoes-cart/pkg/config"
	"github.com/angelmondragon/rocketshoes-cart/pkg/db"
	pkgredis "github.com/angelmondragon/rocketshoes-cart/pkg/redis"
)

// Store is a snapshot store that can report its health.
type Store interface {
	cart.SnapshotStore
	Ping(ctx context.Context) error
}

// Deps carries the optional backends a driver may need.
type Deps struct {
	DB    *db.Client
	Redis *pkgredis.Client
}

// New returns the store selected by cfg.Driver.
func New(cfg config.StorageConfig, deps Deps) (Store, error) {
	switch cfg.Driver {
	case config.StorageDriverMemory:
		return NewMemoryStore(), nil
	case config.StorageDriverFile:
		return NewFileStore(cfg.Dir)
	case config.StorageDriverRedis:
		return NewRedisStore(deps.Redis, cfg.TTL)
	case config.StorageDriverPostgres, config.StorageDriverSQLite:
		if deps.DB == nil {
			return nil, fmt.Errorf("database client required for %s storage", cfg.Driver)
		}
		return NewGormStore(deps.DB.DB())
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// NeedsDB reports whether the driver is backed by the SQL database.
func NeedsDB(driver string) bool {
	return driver == config.StorageDriverPostgres || driver == config.StorageDriverSQLite
}

// NeedsRedis reports whether the driver is backed by Redis.
func NeedsRedis(driver string) bool {
	return driver == config.StorageDriverRedis
}
