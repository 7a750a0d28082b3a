// Package main provides the desktop server. Desktop clients communicate via
// REST/WebSocket on localhost:8090.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kimhsiao/stash/internal/config"
	"github.com/kimhsiao/stash/internal/logging"
)

func main() {
	cfg := config.Load()
	logging.Init(os.Stdout, logging.ParseLevel(cfg.LogLevel))

	if err := run(cfg); err != nil {
		logging.Error("Server exited with error", err, nil)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logging.Info("Stash desktop server starting", map[string]interface{}{
			"addr":  cfg.Addr,
			"store": cfg.Store,
		})
		serverErrors <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	case <-ctx.Done():
		logging.Info("Shutdown signal received", nil)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error("Graceful shutdown failed", err, nil)
	}
	if err := app.Close(shutdownCtx); err != nil {
		logging.Error("Failed to flush document", err, nil)
	}
	logging.Info("Server stopped", nil)
	return serveErr
}
