// Command main is the entry point for the feed ranking server.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unera/internal/config"
	"unera/internal/middleware"
	"unera/internal/observability"
	"unera/internal/server"
	"unera/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:    "unera-feed",
		ServiceVersion: "1.0.0",
		Environment:    cfg.Env,
		Enabled:        cfg.TracingEnabled,
		Exporter:       cfg.TracingExporter,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SamplerRatio:   cfg.TracingSamplerRatio,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	// Create server with dependency injection
	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	var warmer *worker.Warmer
	if cfg.FeedWarmSchedule != "" && cfg.FeedWarmSchedule != "off" {
		warmer, err = worker.NewWarmer(srv.FeedService(), cfg.FeedWarmSchedule, 30*time.Second)
		if err != nil {
			log.Fatalf("Failed to create feed warmer: %v", err)
		}
		warmer.Start()
		go func() {
			if err := warmer.RunOnce(context.Background()); err != nil {
				middleware.Logger.Warn("initial feed warm failed", slog.String("error", err.Error()))
			}
		}()
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		middleware.Logger.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if warmer != nil {
			warmer.Stop(ctx)
		}
		if err := srv.Shutdown(ctx); err != nil {
			middleware.Logger.Error("Server shutdown error", slog.String("error", err.Error()))
		}
		if err := shutdownTracing(ctx); err != nil {
			middleware.Logger.Error("Tracer shutdown error", slog.String("error", err.Error()))
		}
	}()

	if err := srv.Start(); err != nil {
		log.Fatal(err)
	}
}
