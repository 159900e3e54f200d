package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/insightsflow/insightsflow/internal/config"
	"github.com/insightsflow/insightsflow/internal/demo/seed"
	"github.com/insightsflow/insightsflow/internal/observability"
)

func main() {
	cfg, err := seed.LoadConfigFromEnv(os.LookupEnv)
	if err != nil {
		slog.Error("failed to load demo seed config", slog.Any("error", err))
		os.Exit(1)
	}
	serviceCfg, err := config.LoadFromEnv("insightsflow-seed")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(serviceCfg, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := seed.Run(ctx, cfg, logger); err != nil {
		logger.Error("demo seed failed", slog.Any("error", err))
		stop()
		os.Exit(1)
	}
}
