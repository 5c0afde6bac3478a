package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"primefinder/internal/cache"
	"primefinder/internal/config"
	"primefinder/internal/metrics"
	"primefinder/internal/search"
	"primefinder/internal/sitemap"
	"primefinder/internal/static"
	"primefinder/internal/templates"
	"primefinder/internal/web"
)

func runServer(cfg *config.Config) error {
	reg := metrics.NewRegistry()
	searcher, store, err := newSearcher(cfg, reg)
	if err != nil {
		return err
	}

	handler, err := newServerHandler(cfg, searcher, store, reg)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("Serving Prime Finder", "address", cfg.Server.Addr, "mode", searcher.Mode())
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-shutdown:
		slog.Info("Shutdown signal received", "signal", sig)
		return gracefulShutdown(server, store)
	}
}

// newServerHandler wires every route behind the middleware chain.
func newServerHandler(cfg *config.Config, searcher search.Searcher, store cache.Cache, reg *metrics.Registry) (http.Handler, error) {
	static.Init()
	if err := templates.Init(cfg, static.StyleAssetPath, static.ScriptAssetPath); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	mux := http.NewServeMux()
	static.Register(mux)
	web.NewHandler(cfg, searcher).Register(mux)
	sitemap.New(cfg.Server.PublicURL).Register(mux)
	mux.Handle("GET /metrics", reg.Handler())

	ro := &readyOnce{}
	if store != nil {
		ro.Add("cache", store)
	}
	mux.Handle("GET /ready", ro)

	return WithMiddleware(mux, reg), nil
}

func gracefulShutdown(svr *http.Server, store cache.Cache) error {
	// Give outstanding requests 25 seconds to complete (kubernetes has 30 second grace period)
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := svr.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown error", "error", err)
		if closeErr := svr.Close(); closeErr != nil {
			slog.Error("Server close error", "error", closeErr)
		}
		return err
	}

	if closer, ok := store.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			slog.Warn("cache close error", "error", err)
		}
	}
	slog.Info("Server stopped")
	return nil
}
