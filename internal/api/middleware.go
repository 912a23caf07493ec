// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/boonhapus/spellbook-thoughtspot/internal/config"
	"github.com/boonhapus/spellbook-thoughtspot/internal/lifetime"
	"github.com/boonhapus/spellbook-thoughtspot/internal/logging"
	"github.com/boonhapus/spellbook-thoughtspot/internal/metrics"
)

// LifetimeHeader carries the connection lifetime ID on every authenticated
// request.
const LifetimeHeader = "X-Spellbook-Lifetime"

type contextKey string

const lifetimeContextKey contextKey = "spellbook.lifetime"

// corsMiddleware builds the CORS handler for the embedded SDK origins.
func corsMiddleware(cfg config.ServerConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", LifetimeHeader},
		MaxAge:         86400,
	})
}

// loginRateLimit throttles the login endpoint per client IP.
func loginRateLimit(cfg config.ServerConfig) func(http.Handler) http.Handler {
	limit := cfg.LoginRateLimit
	if limit <= 0 {
		limit = 10
	}
	window := cfg.LoginRateWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.LimitByIP(limit, window)
}

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// observeRequests records request metrics and emits one structured log line
// per completed request.
func observeRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		metrics.ObserveHTTPRequest(r.Method, r.URL.Path, rec.status, duration)
		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", duration).
			Msg("Request completed")
	})
}

// requireLifetime resolves the X-Spellbook-Lifetime header to a live
// connection and stores it on the request context. Requests without a valid
// lifetime are rejected with 401.
func requireLifetime(store *lifetime.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(LifetimeHeader)
			if raw == "" {
				respondError(w, http.StatusUnauthorized, "missing "+LifetimeHeader+" header")
				return
			}

			id, err := uuid.Parse(raw)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "malformed lifetime ID")
				return
			}

			l, ok := store.Get(id)
			if !ok {
				respondError(w, http.StatusUnauthorized, "unknown or expired lifetime")
				return
			}

			ctx := context.WithValue(r.Context(), lifetimeContextKey, l)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// lifetimeFrom retrieves the lifetime stored by requireLifetime.
func lifetimeFrom(ctx context.Context) *lifetime.Lifetime {
	l, _ := ctx.Value(lifetimeContextKey).(*lifetime.Lifetime)
	return l
}
