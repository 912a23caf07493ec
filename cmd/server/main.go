// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

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

	"github.com/boonhapus/spellbook-thoughtspot/internal/api"
	"github.com/boonhapus/spellbook-thoughtspot/internal/config"
	"github.com/boonhapus/spellbook-thoughtspot/internal/lifetime"
	"github.com/boonhapus/spellbook-thoughtspot/internal/logging"
	"github.com/boonhapus/spellbook-thoughtspot/internal/spellbook"
	"github.com/boonhapus/spellbook-thoughtspot/internal/supervisor"
	"github.com/boonhapus/spellbook-thoughtspot/internal/supervisor/services"
	"github.com/boonhapus/spellbook-thoughtspot/internal/thoughtspot"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		// Use default logger for config errors (config not yet available)
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Msg("Starting Spellbook with supervisor tree")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bridge zerolog to slog for sutureslog compatibility
	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	store := lifetime.NewStore(tree, cfg.KeepAlive.Interval)

	registry, err := spellbook.NewRegistry(
		spellbook.NewRevealPrivilegedUsers(),
	)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to build spell registry")
	}
	logging.Info().
		Int("spells", registry.Len()).
		Strs("keys", registry.Keys()).
		Msg("Spell registry built")

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(cfg, store, registry).Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", addr).Msg("HTTP server registered with supervisor")

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// Dev auto-login: with fully seeded credentials, open one session so
	// local pages can skip the login round trip.
	if cfg.ThoughtSpot.Host != "" {
		devLogin(ctx, cfg, store)
	}

	// Wait for supervisor to finish (either from signal or error)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	store.CloseAll()

	// Report any services that failed to stop within timeout
	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("Application stopped gracefully")
}

// devLogin opens a session with the pre-seeded credentials. Failure is
// non-fatal: the server still serves logins from the browser.
func devLogin(ctx context.Context, cfg *config.Config, store *lifetime.Store) {
	client := thoughtspot.NewClient(&cfg.ThoughtSpot)

	resp, err := client.Login(ctx)
	if err != nil {
		logging.Warn().Err(err).Str("host", cfg.ThoughtSpot.Host).Msg("Dev auto-login failed")
		return
	}
	if !resp.IsSuccess() {
		logging.Warn().
			Int("status", resp.StatusCode).
			Str("host", cfg.ThoughtSpot.Host).
			Msg("Dev auto-login rejected")
		return
	}

	l := store.Create(client)
	logging.Info().
		Str("lifetime_id", l.ID().String()).
		Str("user", cfg.ThoughtSpot.Username).
		Msg("Dev auto-login session created")
}
