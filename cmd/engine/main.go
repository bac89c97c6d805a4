package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Proton-105/tapcoin-engine/pkg/config"
	"github.com/Proton-105/tapcoin-engine/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tapcoin engine: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return err
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.AppEnv,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		}); err != nil {
			return fmt.Errorf("init sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	logCfg := cfg.Logger
	logCfg.Sentry = cfg.Sentry.Enabled
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Close() }()
	slog.SetDefault(log.Logger)

	config.Watch(v, log.Logger, func(next *config.Config) {
		if err := log.SetLevel(next.Logger.Level); err != nil {
			log.Warn("ignoring log level change", slog.Any("error", err))
		}
	})

	log.Info("starting tapcoin engine",
		slog.String("env", cfg.AppEnv),
		slog.String("addr", cfg.Server.Addr),
		slog.Bool("postgres", cfg.Database.Enabled),
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("telegram", cfg.Telegram.Enabled),
	)

	app, err := newApp(ctx, cfg, log.Logger)
	if err != nil {
		return err
	}
	return app.Run(ctx)
}
