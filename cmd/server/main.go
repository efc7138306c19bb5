// Control surface server: runs the capture pipeline, hosts the shared store
// and serves the control API.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GriffinCanCode/lingualens/platform/internal/config"
	"github.com/GriffinCanCode/lingualens/platform/internal/control"
	"github.com/GriffinCanCode/lingualens/platform/internal/grpcclient"
	"github.com/GriffinCanCode/lingualens/platform/internal/history"
	"github.com/GriffinCanCode/lingualens/platform/internal/kv"
	"github.com/GriffinCanCode/lingualens/platform/internal/metrics"
	"github.com/GriffinCanCode/lingualens/platform/internal/pipeline"
	"github.com/GriffinCanCode/lingualens/platform/internal/relay"
	"github.com/GriffinCanCode/lingualens/platform/internal/screen"
	"github.com/GriffinCanCode/lingualens/platform/internal/server"
	"github.com/GriffinCanCode/lingualens/platform/internal/settings"
)

func main() {
	cfg := config.Load()

	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	m := metrics.New()

	// Shared store; fall back to memory so capture still works without a writable disk.
	hub, err := kv.Open(cfg.StorePath, kv.WithMetrics(m))
	if err != nil {
		slog.Warn("store unavailable, publishing to memory only", "path", cfg.StorePath, "error", err)
		hub = kv.Memory(kv.WithMetrics(m))
	}
	controlConn := hub.Connect("control")
	defer func() { _ = controlConn.Close() }()

	// Connect to inference gRPC server
	inference, err := grpcclient.New(cfg.InferenceAddr)
	if err != nil {
		slog.Error("failed to connect to inference server", "addr", cfg.InferenceAddr, "error", err)
		os.Exit(1)
	}
	defer func() { _ = inference.Close() }()

	readyCtx, readyCancel := context.WithTimeout(context.Background(), grpcclient.HealthCheckTimeout)
	if err := inference.Ready(readyCtx); err != nil {
		slog.Warn("inference server not reachable yet", "addr", cfg.InferenceAddr, "error", err)
	}
	readyCancel()

	var source screen.Source = screen.NewDisplaySource(cfg.CaptureDisplay)
	if cfg.CaptureBackend == config.BackendCommand {
		source = screen.NewCommandSource()
	}

	journal := history.NewStore(cfg.HistorySize, history.EventBuffer)
	pipe := pipeline.New(pipeline.Config{
		Interval:       cfg.SampleInterval,
		TargetLanguage: cfg.TargetLanguage,
		Encoder:        screen.Encoder{MaxWidth: cfg.MaxFrameWidth, Quality: cfg.JPEGQuality},
		SkipSimilar:    cfg.SkipSimilarFrames,
	}, pipeline.Deps{
		Source:     source,
		Extractor:  inference,
		Translator: inference,
		Publisher:  relay.NewPublisher(controlConn, nil),
		Journal:    journal,
		Metrics:    m,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	displaySettings := settings.NewStore(controlConn)
	displaySettings.Load(ctx)

	mgr := control.New(pipe, displaySettings, journal)
	if _, err := mgr.SetTargetLanguage(ctx, cfg.TargetLanguage); err != nil {
		slog.Warn("invalid TARGET_LANGUAGE, keeping it verbatim", "language", cfg.TargetLanguage, "error", err)
	}

	// Create HTTP/WebSocket server
	srv := server.New(mgr, cfg, hub, m)
	defer srv.Close()

	// WriteTimeout stays unset: /ws and /api/store are long-lived.
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("control server starting", "http", cfg.HTTPAddr, "inference", cfg.InferenceAddr, "store", cfg.StorePath)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	mgr.Shutdown()
	slog.Info("shutdown complete")
}
