package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/rocketshoes-cart/api/routes"
	"github.com/angelmondragon/rocketshoes-cart/internal/inventory"
	"github.com/angelmondragon/rocketshoes-cart/pkg/logger"
)

const serviceName = "inventory-stub"

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", envOr("ROCKETSHOES_INVENTORY_ADDR", ":3333"), "listen address")
	seed := flag.String("seed", envOr("ROCKETSHOES_INVENTORY_SEED_PATH", "data/inventory.json"), "catalog seed file")
	level := flag.String("log-level", envOr("ROCKETSHOES_LOG_LEVEL", "info"), "log level")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName, Level: logger.ParseLevel(*level)})
	ctx := logg.WithFields(context.Background(), map[string]any{"addr": *addr, "seed": *seed})

	catalog, err := inventory.LoadCatalog(*seed)
	if err != nil {
		logg.Error(ctx, "failed to load catalog", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              *addr,
		Handler:           routes.NewInventoryRouter(catalog, logg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logg.Info(logg.WithField(ctx, "products", len(catalog.Products())), "starting inventory stub")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "inventory stub stopped unexpectedly", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
