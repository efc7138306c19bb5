// Overlay display surface: a borderless always-on-top window showing the
// latest translation.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/lingualens/platform/internal/config"
	"github.com/GriffinCanCode/lingualens/platform/internal/display"
	"github.com/GriffinCanCode/lingualens/platform/internal/display/tkoverlay"
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

	// Tk must stay on the main goroutine.
	win := tkoverlay.New(cfg.OverlayGeometry)

	dial := func(ctx context.Context) (kv.Store, error) {
		return kvbridge.Dial(ctx, cfg.StoreURL)
	}
	go func() {
		err := display.Follow(ctx, dial, display.NewRenderer(win), resilience.ReconnectRetryConfig())
		if err != nil {
			slog.Error("overlay gave up on the store", "error", err)
		}
		stop()
	}()

	win.Run(ctx)
	stop()
	slog.Info("overlay closed")
}
