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

	"tradeboard/internal/app"
	"tradeboard/internal/chat"
	"tradeboard/internal/infra/gemini"
	"tradeboard/internal/market"
	"tradeboard/internal/server"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to configuration file")
	flag.Parse()

	// 1. System Bootstrapping (fatal on configuration errors)
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(*configPath); err != nil {
		slog.Error("bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	cfg := bootstrap.Config

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Background catalog refresh + icon sync
	if err := bootstrap.StartScheduler(ctx); err != nil {
		slog.Error("scheduler failed to start", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.StopScheduler()

	// 4. Market data pipeline: quote cache + subscription registry
	quotes := market.NewQuoteCache()
	registry := market.NewRegistry(
		bootstrap.Provider,
		quotes,
		time.Duration(cfg.API.CMC.PollIntervalSec)*time.Second,
		bootstrap.Metrics,
		slog.Default(),
	)
	defer registry.Stop()

	// 5. Chat bridge (degrades to canned replies without a credential)
	gen := gemini.NewClient(cfg)
	if gen.Configured() {
		slog.Info("generation API configured", slog.String("model", cfg.API.Gemini.Model))
	} else {
		slog.Warn("no generation API key found, chat runs in fallback mode")
	}
	var store chat.Store
	if bootstrap.Storage != nil {
		store = bootstrap.Storage
	}
	bridge := chat.NewBridge(gen, store, bootstrap.Metrics, slog.Default())

	// 6. HTTP API
	api := server.New(cfg, bootstrap.Catalog, registry, quotes, bootstrap.Provider,
		bridge, bootstrap.Storage, bootstrap.Metrics, slog.Default())

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server listening", slog.String("addr", cfg.Server.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", slog.Any("error", err))
			stop()
		}
	}()

	slog.InfoContext(ctx, "tradeboard fully operational, press Ctrl+C to exit")

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown incomplete", slog.Any("error", err))
	}
}
