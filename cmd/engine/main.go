// Command engine runs the vinylmind HTTP service: it scans a library,
// decodes and analyzes tracks through the offline analysis core, and
// serves the resulting TrackAnalysis records and derived set plans /
// exports over a REST API (spec §1: these transport and persistence
// concerns are external collaborators around the core).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cartomix/vinylmind/internal/analyzer"
	"github.com/cartomix/vinylmind/internal/auth"
	"github.com/cartomix/vinylmind/internal/config"
	"github.com/cartomix/vinylmind/internal/httpapi"
	"github.com/cartomix/vinylmind/internal/storage"
)

func main() {
	cfg := config.Parse()

	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Error("failed to create data directory", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}

	db, err := storage.Open(cfg.DataDir, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	engine, err := analyzer.NewEngine(cfg.Params, logger)
	if err != nil {
		logger.Error("failed to construct analysis engine", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	server := httpapi.NewServer(cfg, logger, db, engine)
	authCfg := auth.Config{Enabled: cfg.AuthEnabled}
	handler := auth.Middleware(authCfg, logger)(server.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("starting engine server",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"sample_rate_hz", cfg.Params.SampleRateHz,
	)

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
