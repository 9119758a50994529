package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/angelmondragon/rocketshoes-cart/pkg/config"
	"github.com/angelmondragon/rocketshoes-cart/pkg/db"
	"github.com/angelmondragon/rocketshoes-cart/pkg/logger"
	"github.com/angelmondragon/rocketshoes-cart/pkg/migrate"
	"github.com/joho/godotenv"
)

func main() {
	ctx := context.Background()
	// bootstrap logger early (then re-init after config load)
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|to")
	version := flag.String("version", "", "target version for -cmd=to")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"cmd":    *cmd,
		"driver": cfg.DB.Driver,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	requireResource(ctx, logg, "sql database", err)

	logg.Info(ctx, "migrate ready")

	switch *cmd {
	case "up", "down", "status":
		if err := migrate.Run(ctx, sqlDB, dbClient.Driver(), *cmd); err != nil {
			fmt.Fprintf(os.Stderr, "goose %s failed: %v\n", *cmd, err)
			os.Exit(1)
		}
	case "version":
		current, err := migrate.Version(sqlDB, dbClient.Driver())
		if err != nil {
			fmt.Fprintf(os.Stderr, "goose version failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("current version:", current)
	case "to":
		if *version == "" {
			fmt.Fprintln(os.Stderr, "missing -version for to command")
			os.Exit(1)
		}
		if err := migrate.MigrateToVersion(ctx, sqlDB, dbClient.Driver(), *version); err != nil {
			fmt.Fprintf(os.Stderr, "goose migrate to %s failed: %v\n", *version, err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
