package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/CodeXPrim8/BU/internal/config"
	"github.com/CodeXPrim8/BU/internal/infra"
	"github.com/CodeXPrim8/BU/internal/logging"
	"github.com/CodeXPrim8/BU/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if err := parseFlags(&cfg, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "parse flags: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.AppName)

	ctx := context.Background()

	// In dev the server runs without Postgres/Redis on in-memory backends.
	var db *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		if err := infra.Migrate(cfg.DatabaseURL); err != nil {
			logger.Error("migrate", "error", err)
			os.Exit(1)
		}
		db, err = infra.NewPostgresPool(ctx, cfg.DatabaseURL, cfg.AppName)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	} else {
		logger.Warn("no DATABASE_URL, using in-memory ledger")
	}

	var cache *redis.Client
	if cfg.RedisURL != "" {
		cache, err = infra.NewRedisClient(ctx, cfg.RedisURL, cfg.AppName)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := cache.Close(); err != nil {
				logger.Warn("close redis", "error", err)
			}
		}()
	} else {
		logger.Warn("no REDIS_URL, idempotency middleware disabled")
	}

	srv, err := server.New(cfg, db, cache, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}

// parseFlags lets local runs override env config without editing .env.
func parseFlags(cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("bu", pflag.ContinueOnError)

	fs.StringVarP(&cfg.Port, "port", "p", cfg.Port, "HTTP listen port")
	fs.StringVarP(&cfg.DatabaseURL, "database", "d", cfg.DatabaseURL, "Postgres connection string")
	fs.StringVarP(&cfg.RedisURL, "redis", "r", cfg.RedisURL, "Redis connection string")
	fs.StringVarP(&cfg.LogLevel, "log-level", "l", cfg.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&cfg.AppEnv, "env", "e", cfg.AppEnv, "Environment (development, production)")

	return fs.Parse(args)
}
