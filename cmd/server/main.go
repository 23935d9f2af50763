// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

// Package main is the entry point for the Pathfinder audit service.
//
// The service records tamper-evident audit events for the Pathfinder
// career-management backend: every event is hash-chained to its
// predecessor, risk scored, checked against critical-threat rules and
// buffered into DuckDB. Critical events flush immediately and fan out to
// the configured alert channels (log, webhook, WebSocket dashboards).
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: Load settings from environment variables and config files (Koanf v2)
//  2. Database: Open DuckDB and create the audit schema
//  3. Audit pipeline: enrichment, hash chain, risk scoring, buffered flush
//  4. WebSocket hub: real-time security alerts to admin dashboards
//  5. Retention scheduler: periodic archive and purge sweeps
//  6. HTTP server: REST API with Prometheus metrics
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file (config.yaml),
// built-in defaults. See the config package for the variable list.
//
// # Signal Handling
//
// The server handles graceful shutdown on SIGINT and SIGTERM:
//   - Stops accepting new connections
//   - Waits for in-flight requests to complete (10s timeout)
//   - Flushes buffered audit events to the store
//   - Closes the database connection
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/czhaoca/pathfinder-sub009/internal/api"
	"github.com/czhaoca/pathfinder-sub009/internal/audit"
	"github.com/czhaoca/pathfinder-sub009/internal/config"
	"github.com/czhaoca/pathfinder-sub009/internal/database"
	"github.com/czhaoca/pathfinder-sub009/internal/logging"
	ws "github.com/czhaoca/pathfinder-sub009/internal/websocket"
)

func main() {
	// Load configuration first to get logging settings.
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
		Int("buffer_size", cfg.Audit.BufferSize).
		Dur("flush_interval", cfg.Audit.FlushInterval).
		Msg("Starting Pathfinder audit service")

	db, err := database.New(database.Config{
		Path:      cfg.Database.Path,
		MaxMemory: cfg.Database.MaxMemory,
		Threads:   cfg.Database.Threads,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := audit.NewDuckDBStore(db.Conn())
	if err := store.CreateTables(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to create audit schema")
	}
	logging.Info().Msg("Audit schema ready")

	// WebSocket hub for pushing security alerts to admin dashboards.
	hub := ws.NewHub()
	hubDone := make(chan struct{})
	go func() {
		defer close(hubDone)
		if err := hub.RunWithContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("WebSocket hub stopped with error")
		}
	}()

	service := audit.NewService(store, &cfg.Audit)
	service.RegisterNotifier(&audit.LogNotifier{})
	service.RegisterNotifier(audit.NewBroadcastNotifier(hub))
	if cfg.Webhook.Enabled {
		service.RegisterNotifier(audit.NewWebhookNotifier(cfg.Webhook))
		logging.Info().Str("url", cfg.Webhook.URL).Msg("Webhook alerting enabled")
	}
	service.Start()

	// Retention sweeps run on their own schedule; the first sweep happens
	// one full interval after startup.
	var retention *audit.RetentionManager
	if cfg.Retention.Enabled && len(cfg.Retention.Policies) > 0 {
		retention = audit.NewRetentionManager(store, cfg.Retention.Policies)
		go runRetention(ctx, retention, cfg.Retention.Interval)
		logging.Info().
			Int("policies", len(cfg.Retention.Policies)).
			Dur("interval", cfg.Retention.Interval).
			Msg("Retention scheduler started")
	}

	handler := api.NewHandler(store, service, audit.NewReporter(store), retention, hub, cfg)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler).Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		serverErr <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("HTTP server failed")
		}
	}

	// Stop accepting requests first so no new audit events arrive while
	// the pipeline drains.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if err := service.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Audit pipeline shutdown error")
	}

	cancel()
	select {
	case <-hubDone:
	case <-shutdownCtx.Done():
		logging.Warn().Msg("WebSocket hub did not stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// runRetention applies the retention policies on a fixed interval until
// the context is canceled.
func runRetention(ctx context.Context, mgr *audit.RetentionManager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := mgr.Apply(ctx)
			for _, pr := range result.Policies {
				if pr.Error != "" {
					logging.Error().
						Str("event_type", pr.Policy.EventType).
						Str("error", pr.Error).
						Msg("Retention policy failed")
					continue
				}
				logging.Info().
					Str("event_type", pr.Policy.EventType).
					Int64("archived", pr.Archived).
					Int64("purged", pr.Purged).
					Msg("Retention policy applied")
			}
		}
	}
}
