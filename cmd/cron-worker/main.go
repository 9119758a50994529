package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/rocketshoes-cart/internal/cron"
	"github.com/angelmondragon/rocketshoes-cart/internal/storage"
	"github.com/angelmondragon/rocketshoes-cart/pkg/config"
	"github.com/angelmondragon/rocketshoes-cart/pkg/db"
	"github.com/angelmondragon/rocketshoes-cart/pkg/logger"
	"github.com/angelmondragon/rocketshoes-cart/pkg/metrics"
	"github.com/angelmondragon/rocketshoes-cart/pkg/migrate"
	"github.com/angelmondragon/rocketshoes-cart/pkg/redis"
)

const (
	serviceName   = "cron-worker"
	lockKeyFormat = "cron-worker:lock:%s"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}
	once := flag.Bool("once", false, "run a single cycle and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	if !storage.NeedsDB(cfg.Storage.Driver) {
		logg.Error(context.Background(), "snapshot retention needs a SQL storage driver",
			fmt.Errorf("storage driver %q has no prunable table", cfg.Storage.Driver))
		os.Exit(1)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRun(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run migrations", err)
		os.Exit(1)
	}

	store, err := storage.NewGormStore(dbClient.DB())
	if err != nil {
		logg.Error(context.Background(), "failed to build snapshot store", err)
		os.Exit(1)
	}

	jobMetrics := metrics.NewJobMetrics(prometheus.DefaultRegisterer)
	job, err := cron.NewSnapshotRetentionJob(cron.SnapshotRetentionJobParams{
		Logger:  logg,
		Store:   store,
		Metrics: jobMetrics,
		MaxAge:  cfg.Retention.MaxAge,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create retention job", err)
		os.Exit(1)
	}
	registry, err := cron.NewRegistry(job)
	if err != nil {
		logg.Error(context.Background(), "failed to register jobs", err)
		os.Exit(1)
	}

	lock, closeLock, err := buildLock(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}
	defer closeLock()

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Retention.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Retention.Interval.String(),
		"max_age":  cfg.Retention.MaxAge.String(),
	})

	if *once {
		if err := service.RunOnce(ctx); err != nil {
			logg.Error(ctx, "cron cycle failed", err)
			os.Exit(1)
		}
		return
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

// buildLock uses Redis when configured so several workers can share a
// schedule; otherwise it falls back to an in-process lock.
func buildLock(cfg *config.Config, logg *logger.Logger) (cron.Lock, func(), error) {
	if cfg.Redis.URL == "" && cfg.Redis.Address == "" {
		return &cron.LocalLock{}, func() {}, nil
	}
	client, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}
	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	lock, err := cron.NewRedisLock(client, client.Key(fmt.Sprintf(lockKeyFormat, env)), cfg.Retention.LockTTL)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return lock, closeFn, nil
}
