// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/boonhapus/spellbook-thoughtspot/internal/config"
	"github.com/boonhapus/spellbook-thoughtspot/internal/lifetime"
	"github.com/boonhapus/spellbook-thoughtspot/internal/spellbook"
)

// Router assembles the HTTP surface.
type Router struct {
	cfg     *config.Config
	store   *lifetime.Store
	handler *Handler
}

// NewRouter creates the router over its collaborators.
func NewRouter(cfg *config.Config, store *lifetime.Store, registry *spellbook.Registry) *Router {
	return &Router{
		cfg:     cfg,
		store:   store,
		handler: NewHandler(cfg, store, registry),
	}
}

// Setup configures all routes and the middleware stack.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsMiddleware(rt.cfg.Server))
	r.Use(observeRequests)

	timeout := chimiddleware.Timeout(rt.cfg.Server.RequestTimeout)

	r.With(timeout).Get("/healthz", rt.handler.Health)
	r.With(timeout).Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Login stands alone: no lifetime yet, strict rate limit.
		r.With(timeout, loginRateLimit(rt.cfg.Server)).Post("/login", rt.handler.Login)

		// Everything else requires a live connection.
		r.Group(func(r chi.Router) {
			r.Use(requireLifetime(rt.store))

			r.With(timeout).Post("/logout", rt.handler.Logout)
			r.With(timeout).Post("/page", rt.handler.Page)
			r.With(timeout).Post("/spells", rt.handler.Spells)
			r.With(timeout).Post("/users/search", rt.handler.UsersSearch)

			// No request timeout here: a single upstream window fetch may
			// legitimately run up to the ThoughtSpot client timeout (300s
			// default), which already bounds the collection per window.
			r.Get("/logs/security", rt.handler.SecurityLogs)
		})
	})

	return r
}
