package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.uber.org/multierr"

	"github.com/angelmondragon/rocketshoes-cart/api/routes"
	"github.com/angelmondragon/rocketshoes-cart/internal/cart"
	"github.com/angelmondragon/rocketshoes-cart/internal/cron"
	"github.com/angelmondragon/rocketshoes-cart/internal/notifications"
	"github.com/angelmondragon/rocketshoes-cart/pkg/config"
	"github.com/angelmondragon/rocketshoes-cart/pkg/logger"
	"github.com/angelmondragon/rocketshoes-cart/pkg/metrics"
	"github.com/angelmondragon/rocketshoes-cart/pkg/tracing"
)

const (
	serviceName     = "cart-api"
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, serviceName)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps, err := bootstrap(ctx, cfg, logg)
	if err != nil {
		return multierr.Append(err, shutdownTracing(context.Background()))
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = multierr.Combine(err, deps.Close(closeCtx), shutdownTracing(closeCtx))
	}()

	registry, err := cart.NewRegistry(cart.RegistryParams{
		Inventory:      deps.inventory,
		Store:          deps.store,
		Notifier:       deps.notifier,
		Logger:         logg,
		Metrics:        metrics.NewCartMetrics(reg),
		TracerProvider: otel.GetTracerProvider(),
		MaxSessions:    cfg.Session.MaxSessions,
	})
	if err != nil {
		return err
	}

	sweeper, err := newSessionSweeper(cfg, logg, reg, registry, deps.feed)
	if err != nil {
		return err
	}
	sweepCtx, stopSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		_ = sweeper.Run(sweepCtx)
	}()
	defer func() {
		stopSweep()
		<-sweepDone
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:    cfg,
			Logger:    logg,
			Carts:     registry,
			Feed:      deps.feed,
			Gatherer:  reg,
			Readiness: deps.readiness,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":            cfg.App.Env,
		"addr":           addr,
		"storage_driver": cfg.Storage.Driver,
		"inventory_mode": cfg.Inventory.Mode,
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newSessionSweeper periodically drops carts and notification queues of idle
// sessions; evicted carts are hydrated again from the store on next use.
func newSessionSweeper(cfg *config.Config, logg *logger.Logger, reg prometheus.Registerer, carts *cart.Registry, feed *notifications.Feed) (*cron.Service, error) {
	jobMetrics := metrics.NewJobMetrics(reg)
	job, err := cron.NewSessionEvictionJob(cron.SessionEvictionJobParams{
		Logger:  logg,
		Targets: map[string]cron.IdleEvicter{"carts": carts, "feed": feed},
		Metrics: jobMetrics,
		IdleTTL: cfg.Session.IdleTTL,
	})
	if err != nil {
		return nil, err
	}
	jobs, err := cron.NewRegistry(job)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: jobs,
		Lock:     &cron.LocalLock{},
		Metrics:  jobMetrics,
		Interval: cfg.Session.SweepInterval,
	})
}
