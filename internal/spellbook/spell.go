// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

// Package spellbook holds the spell registry and the spells themselves.
//
// A spell is a small augmentation applied to the ThoughtSpot UI: it has a
// key identifying which page and UI event it responds to, a server-side
// Invoke step that gathers whatever data it needs, and a Render step that
// produces the script/style fragment injected into the page.
package spellbook

import (
	"context"
	"fmt"
	"strings"

	"github.com/boonhapus/spellbook-thoughtspot/internal/thoughtspot"
)

// Session is the slice of the ThoughtSpot API a spell may call during
// Invoke. Satisfied by *thoughtspot.Client; spells see the session of the
// connection that triggered them.
type Session interface {
	SearchUsers(ctx context.Context, req thoughtspot.UserSearchRequest) (*thoughtspot.APIResponse, error)
}

// Wildcard matches any UI event type on a page.
const Wildcard = "*"

// Fragment is the renderable output of a spell, injected into the admin UI.
type Fragment struct {
	// Script is a JavaScript snippet, without surrounding <script> tags.
	Script string `json:"script,omitempty"`

	// Style is a CSS snippet, without surrounding <style> tags.
	Style string `json:"style,omitempty"`
}

// Spell is additional magic that augments ThoughtSpot.
//
// Implementations must be safe for concurrent use: a single spell instance
// is shared by every connection the server tracks.
type Spell interface {
	// Key returns the spell's "page:event" binding, e.g. "/admin:*".
	Key() string

	// Invoke performs the spell's data gathering against the triggering
	// connection's session. It is called whenever the spell is selected
	// for a page event, before Render.
	Invoke(ctx context.Context, session Session) error

	// Render returns the fragment to inject into the current page.
	Render() Fragment
}

// SpellKey builds the canonical "page:event" key.
func SpellKey(page, eventType string) string {
	if eventType == "" {
		eventType = Wildcard
	}
	return fmt.Sprintf("%s:%s", page, eventType)
}

// splitKey breaks a "page:event" key into its parts. Pages may themselves
// contain path separators but never a colon, so the last colon wins.
func splitKey(key string) (page, eventType string, ok bool) {
	i := strings.LastIndex(key, ":")
	if i < 0 {
		return "", "", false
	}
	return key[:i], key[i+1:], true
}
