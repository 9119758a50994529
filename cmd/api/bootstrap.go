package main

import (
	"context"
	"fmt"

	"github.com/angelmondragon/rocketshoes-cart/api/controllers"
	"github.com/angelmondragon/rocketshoes-cart/internal/cart"
	"github.com/angelmondragon/rocketshoes-cart/internal/inventory"
	"github.com/angelmondragon/rocketshoes-cart/internal/notifications"
	"github.com/angelmondragon/rocketshoes-cart/internal/storage"
	"github.com/angelmondragon/rocketshoes-cart/pkg/config"
	"github.com/angelmondragon/rocketshoes-cart/pkg/db"
	"github.com/angelmondragon/rocketshoes-cart/pkg/logger"
	"github.com/angelmondragon/rocketshoes-cart/pkg/migrate"
	"github.com/angelmondragon/rocketshoes-cart/pkg/pubsub"
	pkgredis "github.com/angelmondragon/rocketshoes-cart/pkg/redis"
	"go.uber.org/multierr"
)

type dependencies struct {
	inventory cart.Inventory
	store     storage.Store
	notifier  cart.Notifier
	feed      *notifications.Feed
	readiness []controllers.ReadinessCheck

	closers []func(context.Context) error
}

// Close releases resources in reverse order of acquisition.
func (d *dependencies) Close(ctx context.Context) error {
	var errs error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, d.closers[i](ctx))
	}
	return errs
}

func bootstrap(ctx context.Context, cfg *config.Config, logg *logger.Logger) (deps *dependencies, err error) {
	deps = &dependencies{}
	defer func() {
		if err != nil {
			err = multierr.Append(err, deps.Close(context.Background()))
		}
	}()

	var storeDeps storage.Deps
	if storage.NeedsDB(cfg.Storage.Driver) {
		dbClient, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return deps, fmt.Errorf("bootstrap database: %w", err)
		}
		deps.closers = append(deps.closers, func(context.Context) error { return dbClient.Close() })
		if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
			return deps, fmt.Errorf("run migrations: %w", err)
		}
		storeDeps.DB = dbClient
		deps.readiness = append(deps.readiness, controllers.ReadinessCheck{Name: "database", Pinger: dbClient})
	}
	if storage.NeedsRedis(cfg.Storage.Driver) {
		redisClient, err := pkgredis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return deps, fmt.Errorf("bootstrap redis: %w", err)
		}
		deps.closers = append(deps.closers, func(context.Context) error { return redisClient.Close() })
		storeDeps.Redis = redisClient
	}

	store, err := storage.New(cfg.Storage, storeDeps)
	if err != nil {
		return deps, fmt.Errorf("build snapshot store: %w", err)
	}
	deps.store = store
	deps.readiness = append(deps.readiness, controllers.ReadinessCheck{Name: "snapshot_store", Pinger: store})

	switch cfg.Inventory.Mode {
	case config.InventoryModeLocal:
		catalog, err := inventory.LoadCatalog(cfg.Inventory.SeedPath)
		if err != nil {
			return deps, fmt.Errorf("load inventory seed: %w", err)
		}
		deps.inventory = catalog
	default:
		client, err := inventory.NewClient(cfg.Inventory, logg)
		if err != nil {
			return deps, fmt.Errorf("build inventory client: %w", err)
		}
		deps.inventory = client
		deps.readiness = append(deps.readiness, controllers.ReadinessCheck{Name: "inventory", Pinger: client})
	}

	deps.feed = notifications.NewFeed(notifications.DefaultFeedCapacity)
	sinks := notifications.Multi{notifications.NewLogNotifier(logg), deps.feed}

	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return deps, fmt.Errorf("bootstrap pubsub: %w", err)
		}
		deps.closers = append(deps.closers, func(context.Context) error { return psClient.Close() })
		topic := psClient.NotificationPublisher()
		deps.closers = append(deps.closers, func(context.Context) error {
			topic.Stop()
			return nil
		})
		publisher, err := notifications.NewPubSubNotifier(topic, logg)
		if err != nil {
			return deps, fmt.Errorf("build pubsub notifier: %w", err)
		}
		deps.closers = append(deps.closers, publisher.Flush)
		deps.readiness = append(deps.readiness, controllers.ReadinessCheck{Name: "pubsub", Pinger: psClient})
		sinks = append(sinks, publisher)
	}
	deps.notifier = sinks
	return deps, nil
}
