// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/boonhapus/spellbook-thoughtspot/internal/logging"
)

// errorResponse is the JSON error envelope for every non-2xx API response.
type errorResponse struct {
	Error string `json:"error"`

	// UpstreamStatus carries the ThoughtSpot status code when the failure
	// originated upstream, so callers can distinguish "bad credentials"
	// from "cluster unreachable".
	UpstreamStatus int `json:"upstream_status,omitempty"`
}

// respondJSON writes v as a JSON response with the given status.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Err(err).Msg("Failed to encode JSON response")
	}
}

// respondError writes a JSON error envelope.
func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}

// respondUpstreamError writes a JSON error envelope tagged with the
// ThoughtSpot status that caused it.
func respondUpstreamError(w http.ResponseWriter, status int, msg string, upstream int) {
	respondJSON(w, status, errorResponse{Error: msg, UpstreamStatus: upstream})
}
