package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/invoice-agent/internal/bootstrap"
	"github.com/kirillkom/invoice-agent/internal/config"
	"github.com/kirillkom/invoice-agent/internal/infrastructure/watcher"
	"github.com/kirillkom/invoice-agent/internal/observability/logging"
)

var version = "dev"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(bootstrap.ServiceName+"-worker", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Version: version, Ingestion: true})
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	w, err := watcher.New(watcher.Config{
		Dir:         cfg.WatchDir,
		InitialScan: true,
		Debounce:    cfg.WatchDebounce,
	})
	if err != nil {
		slog.Error("watcher_init_failed", "error", err)
		os.Exit(1)
	}

	err = w.Run(ctx, func(handlerCtx context.Context, path string) {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()
		// Failures are already logged, published and archived by the use case.
		_, _ = app.IngestUC.ProcessFile(processCtx, path)
	})
	if err != nil {
		slog.Error("watcher_failed", "error", err)
		os.Exit(1)
	}
}
