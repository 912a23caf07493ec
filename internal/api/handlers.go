// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

package api

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/boonhapus/spellbook-thoughtspot/internal/config"
	"github.com/boonhapus/spellbook-thoughtspot/internal/lifetime"
	"github.com/boonhapus/spellbook-thoughtspot/internal/logging"
	"github.com/boonhapus/spellbook-thoughtspot/internal/metrics"
	"github.com/boonhapus/spellbook-thoughtspot/internal/spellbook"
	"github.com/boonhapus/spellbook-thoughtspot/internal/thoughtspot"
)

// maxRequestBody bounds JSON request bodies on the API surface.
const maxRequestBody = 1 << 20 // 1MB

var validate = validator.New(validator.WithRequiredStructEnabled())

// Handler implements the Spellbook JSON endpoints.
type Handler struct {
	cfg      *config.Config
	store    *lifetime.Store
	registry *spellbook.Registry
}

// NewHandler wires the endpoints to their collaborators.
func NewHandler(cfg *config.Config, store *lifetime.Store, registry *spellbook.Registry) *Handler {
	return &Handler{cfg: cfg, store: store, registry: registry}
}

// decode reads a bounded JSON request body into v.
func decode(r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxRequestBody)).Decode(v)
}

// loginRequest carries the credentials for one browser connection.
type loginRequest struct {
	Host      string `json:"host" validate:"required,url"`
	Username  string `json:"username" validate:"required"`
	SecretKey string `json:"secret_key" validate:"required,uuid"`
}

// loginResponse hands the lifetime ID back to the browser.
type loginResponse struct {
	LifetimeID string `json:"lifetime_id"`
	Username   string `json:"username"`
}

// Login authenticates against the ThoughtSpot cluster and, on success,
// creates a connection lifetime with a supervised keep-alive task.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid login payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "host, username and secret_key are required")
		return
	}

	client := thoughtspot.NewClient(&config.ThoughtSpotConfig{
		Host:          req.Host,
		Username:      req.Username,
		SecretKey:     req.SecretKey,
		TokenValidity: h.cfg.ThoughtSpot.TokenValidity,
		Timeout:       h.cfg.ThoughtSpot.Timeout,
	})

	resp, err := client.Login(r.Context())
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		logging.Err(err).Str("host", req.Host).Msg("ThoughtSpot login request failed")
		respondError(w, http.StatusBadGateway, "thoughtspot cluster unreachable")
		return
	}
	if !resp.IsSuccess() {
		metrics.LoginsTotal.WithLabelValues("unauthorized").Inc()
		logging.Warn().
			Str("host", req.Host).
			Str("user", req.Username).
			Int("status", resp.StatusCode).
			Msg("ThoughtSpot rejected login")
		respondUpstreamError(w, http.StatusUnauthorized, "authentication failed", resp.StatusCode)
		return
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	l := h.store.Create(client)

	logging.Info().
		Str("lifetime_id", l.ID().String()).
		Str("user", req.Username).
		Msg("Connection lifetime created")

	respondJSON(w, http.StatusOK, loginResponse{
		LifetimeID: l.ID().String(),
		Username:   client.Username(),
	})
}

// Logout tears down the connection lifetime, stopping its keep-alive.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	l := lifetimeFrom(r.Context())
	h.store.Remove(l.ID())
	respondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// pageRequest records a navigation in the embedded product.
type pageRequest struct {
	Page string `json:"page" validate:"required"`
}

// Page records the current page on the lifetime. Spell lookups resolve
// against this page until the next navigation.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid page payload")
		return
	}
	if err := validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "page is required")
		return
	}

	l := lifetimeFrom(r.Context())
	l.SetCurrentPage(req.Page)
	respondJSON(w, http.StatusOK, map[string]string{"page": req.Page})
}

// spellsRequest describes a UI event on the current page.
type spellsRequest struct {
	Type string `json:"type"`
}

// spellResult is one invoked spell's renderable output.
type spellResult struct {
	Key      string             `json:"key"`
	Fragment spellbook.Fragment `json:"fragment"`
}

// Spells looks up the spells bound to (current page, event type), invokes
// them, and returns their fragments. A spell whose Invoke fails is logged
// and skipped; the rest still render.
func (h *Handler) Spells(w http.ResponseWriter, r *http.Request) {
	var req spellsRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid spells payload")
		return
	}

	l := lifetimeFrom(r.Context())
	matched := h.registry.Lookup(l.CurrentPage(), req.Type)

	results := make([]spellResult, 0, len(matched))
	active := make([]spellbook.Spell, 0, len(matched))
	for _, s := range matched {
		if err := s.Invoke(r.Context(), l.Client()); err != nil {
			metrics.SpellInvocations.WithLabelValues(s.Key(), "error").Inc()
			logging.Err(err).Str("spell", s.Key()).Msg("Spell invocation failed")
			continue
		}
		metrics.SpellInvocations.WithLabelValues(s.Key(), "ok").Inc()
		results = append(results, spellResult{Key: s.Key(), Fragment: s.Render()})
		active = append(active, s)
	}
	l.SetActiveSpells(active)

	respondJSON(w, http.StatusOK, map[string]any{"spells": results})
}

// UsersSearch proxies an arbitrary user-search payload to ThoughtSpot and
// relays the upstream status and body untouched.
func (h *Handler) UsersSearch(w http.ResponseWriter, r *http.Request) {
	var req thoughtspot.UserSearchRequest
	if err := decode(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid search payload")
		return
	}

	l := lifetimeFrom(r.Context())
	resp, err := l.Client().SearchUsers(r.Context(), req)
	if err != nil {
		respondError(w, http.StatusBadGateway, "thoughtspot cluster unreachable")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		logging.Err(err).Msg("Failed to relay user search response")
	}
}

// securityLogsResponse is the merged backfill envelope.
type securityLogsResponse struct {
	Since         string                      `json:"since"`
	Until         string                      `json:"until"`
	Events        []thoughtspot.SecurityEvent `json:"events"`
	Partial       bool                        `json:"partial"`
	FailedWindows []string                    `json:"failed_windows,omitempty"`
}

// SecurityLogs collects the security audit log over [since, until) and
// responds with one merged batch. until defaults to now. A partially failed
// run still returns everything collected, flagged partial.
//
// The route is exempt from the server request timeout: each upstream window
// fetch is bounded by the ThoughtSpot client timeout instead, so a large
// range is allowed to run as long as its slowest window.
func (h *Handler) SecurityLogs(w http.ResponseWriter, r *http.Request) {
	since, err := time.Parse(time.RFC3339, r.URL.Query().Get("since"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "since must be an RFC3339 timestamp")
		return
	}

	until := time.Now().UTC()
	if raw := r.URL.Query().Get("until"); raw != "" {
		until, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "until must be an RFC3339 timestamp")
			return
		}
	}

	l := lifetimeFrom(r.Context())
	collector := thoughtspot.NewCollector(l.Client(), h.cfg.Collector)

	batches, err := collector.Collect(r.Context(), thoughtspot.CollectOptions{Since: since, Until: until})
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	batch, ok := <-batches
	if !ok {
		// Canceled before completion; the client has gone away.
		respondError(w, http.StatusServiceUnavailable, "collection canceled")
		return
	}

	failed := make([]string, 0, len(batch.FailedWindows))
	for _, fw := range batch.FailedWindows {
		failed = append(failed, fw.String())
	}

	respondJSON(w, http.StatusOK, securityLogsResponse{
		Since:         since.UTC().Format(time.RFC3339),
		Until:         until.UTC().Format(time.RFC3339),
		Events:        batch.Events,
		Partial:       batch.Partial,
		FailedWindows: failed,
	})
}

// Health reports process liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"lifetimes": h.store.Len(),
	})
}
