package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	service "github.com/rafaelCarinha/tao-dividends/dividends/internal"
	"github.com/rafaelCarinha/tao-dividends/dividends/internal/config"
	"github.com/rafaelCarinha/tao-dividends/libs/go/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New("dividends", cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	app := service.NewApp(cfg, logger)

	if err := app.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("service exited with error", zap.Error(err))
	}
}
