package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wachiwi/tts-catalog/pkg/archive"
	"github.com/wachiwi/tts-catalog/pkg/catalog"
	"github.com/wachiwi/tts-catalog/pkg/config"
	"github.com/wachiwi/tts-catalog/pkg/ledger"
	"github.com/wachiwi/tts-catalog/pkg/logger"
	"github.com/wachiwi/tts-catalog/pkg/telemetry"
)

var setupTelemetry = telemetry.Setup

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("archive", flag.ContinueOnError)
	var configPath, dir string
	fs.StringVar(&configPath, "config", "", "Optional YAML config file")
	fs.StringVar(&dir, "dir", "", "Artifact root to serve (default: templates_dir)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		return 1
	}
	logger.Setup(cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := setupTelemetry(ctx, "archive", cfg.OTELEndpoint)
	if err != nil {
		slog.Error("Failed to set up telemetry", "error", err)
	} else {
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				slog.Error("Failed to shut down telemetry", "error", err)
			}
		}()
	}

	srv := &archive.Server{Root: cfg.TemplatesDir, Ledger: cfg.Ledger()}
	if dir != "" {
		srv.Root = dir
		srv.Ledger = ledger.InDir(dir, 0)
	}
	if err := os.MkdirAll(srv.Root, 0755); err != nil {
		slog.Error("Failed to create data directory", "dir", srv.Root, "error", err)
		return 1
	}
	if store, err := catalog.Load(cfg.CatalogPath); err != nil {
		slog.Warn("Catalog not available", "error", err)
	} else {
		srv.Store = store
	}

	if cfg.Archive.User != "" || cfg.Archive.Password != "" {
		if cfg.Archive.User == "" || cfg.Archive.Password == "" {
			slog.Error("ARCHIVE_USER and ARCHIVE_PASSWORD must be set together")
			return 1
		}
		srv.Accounts = gin.Accounts{cfg.Archive.User: cfg.Archive.Password}
	} else {
		slog.Warn("ARCHIVE_USER is not set; serving without authentication")
	}

	httpServer := &http.Server{
		Addr:              cfg.Archive.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Server is running", "addr", httpServer.Addr, "dir", srv.Root)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to run server", "error", err)
			return 1
		}
	case <-ctx.Done():
		slog.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server forced shutdown", "error", err)
		}
	}
	return 0
}
