// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

package spellbook

import (
	"fmt"
	"sort"
)

// Registry is an immutable index of spells keyed by "page:event". It is
// built once at startup and read concurrently by every request after that,
// so it carries no locks.
type Registry struct {
	byKey map[string][]Spell
}

// NewRegistry indexes the given spells. Spells with malformed keys are
// rejected so a bad binding fails at startup rather than silently never
// matching.
func NewRegistry(spells ...Spell) (*Registry, error) {
	byKey := make(map[string][]Spell, len(spells))
	for _, s := range spells {
		key := s.Key()
		if _, _, ok := splitKey(key); !ok {
			return nil, fmt.Errorf("spell key %q is not of the form page:event", key)
		}
		byKey[key] = append(byKey[key], s)
	}
	return &Registry{byKey: byKey}, nil
}

// Lookup returns the spells bound to the given page and UI event type, in
// registration order. A spell registered with the "*" event matches every
// event on its page. An empty eventType is treated as "*".
func (r *Registry) Lookup(page, eventType string) []Spell {
	if eventType == "" {
		eventType = Wildcard
	}

	matched := r.byKey[SpellKey(page, eventType)]
	if eventType != Wildcard {
		matched = append(matched, r.byKey[SpellKey(page, Wildcard)]...)
	}

	// Callers may append; never hand out the backing array.
	out := make([]Spell, len(matched))
	copy(out, matched)
	return out
}

// Keys returns every registered "page:event" key, sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered spells.
func (r *Registry) Len() int {
	n := 0
	for _, spells := range r.byKey {
		n += len(spells)
	}
	return n
}
