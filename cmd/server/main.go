// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

// Package main is the entry point for the Fanbeam server.
//
// Fanbeam is the attribution and engagement backend behind a creator's
// link-in-bio page. It resolves visitors to audience members by device
// fingerprint, records interaction events, and maintains a running
// engagement score and intent level per member.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered load from defaults, YAML file, and environment (Koanf v2)
//  2. Database: DuckDB store for creators, audience members, and interaction events
//  3. Event bus (optional): NATS JetStream fan-out of recorded interactions
//  4. HTTP server: Chi REST API under /api/v1
//  5. Supervisor tree: Suture-managed lifecycle for the API and messaging layers
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest priority wins):
//   - Environment variables with the FANBEAM_ prefix (FANBEAM_SERVER_PORT=8860)
//   - Config file (fanbeam.yaml, or FANBEAM_CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete
//   - Closes the event bus and database connections
//
// # Example Usage
//
// Development, in-memory event bus disabled:
//
//	export FANBEAM_DATABASE_PATH=data/fanbeam.db
//	./fanbeam
//
// With the embedded NATS server for interaction fan-out:
//
//	export FANBEAM_EVENTBUS_ENABLED=true
//	./fanbeam
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fanbeam/fanbeam/internal/api"
	"github.com/fanbeam/fanbeam/internal/config"
	"github.com/fanbeam/fanbeam/internal/database"
	"github.com/fanbeam/fanbeam/internal/eventbus"
	"github.com/fanbeam/fanbeam/internal/logging"
	"github.com/fanbeam/fanbeam/internal/supervisor"
	"github.com/fanbeam/fanbeam/internal/supervisor/services"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Bool("eventbus_enabled", cfg.EventBus.Enabled).
		Msg("Starting Fanbeam")

	db, err := database.New(&cfg.Database, cfg.Engagement.Accumulator())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	// Event bus is optional. Interactions are durable in DuckDB either way;
	// the bus only adds downstream fan-out.
	var publisher api.InteractionPublisher
	if cfg.EventBus.Enabled {
		bus, err := eventbus.New(&cfg.EventBus)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize event bus")
		}
		publisher = bus
		tree.AddMessagingService(services.NewEventBusService(bus, 10*time.Second))
		logging.Info().
			Str("stream", cfg.EventBus.StreamName).
			Bool("embedded_server", cfg.EventBus.EmbeddedServer).
			Msg("Event bus initialized")
	} else {
		logging.Info().Msg("Event bus disabled, interactions recorded to database only")
	}

	handler := api.NewHandler(db, publisher)
	middleware := api.NewMiddleware(&api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		RateLimitRequests:  cfg.Server.RateLimitRequests,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
		RateLimitDisabled:  cfg.Server.RateLimitDisabled,
	})

	if cfg.Server.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED")
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewRouter(handler, middleware, cfg.Server.Timeout),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	// Drain until the supervisor reports it is fully stopped.
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	logging.Info().Msg("Fanbeam stopped gracefully")
}
