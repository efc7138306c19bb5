// Headless display surface: follows the shared store and logs what an
// overlay would show.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/lingualens/platform/internal/config"
	"github.com/GriffinCanCode/lingualens/platform/internal/display"
	"github.com/GriffinCanCode/lingualens/platform/internal/kv"
	"github.com/GriffinCanCode/lingualens/platform/internal/kvbridge"
	"github.com/GriffinCanCode/lingualens/platform/internal/resilience"
)

func main() {
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dial := func(ctx context.Context) (kv.Store, error) {
		return kvbridge.Dial(ctx, cfg.StoreURL)
	}
	renderer := display.NewRenderer(&display.LogSurface{Logger: logger})

	slog.Info("display starting", "store", cfg.StoreURL)
	if err := display.Follow(ctx, dial, renderer, resilience.ReconnectRetryConfig()); err != nil {
		slog.Error("display gave up on the store", "error", err)
		os.Exit(1)
	}
	slog.Info("display stopped")
}
