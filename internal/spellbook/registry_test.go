// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

package spellbook

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubSpell is a trivially keyable spell for registry tests.
type stubSpell struct {
	key     string
	invoked int
}

func (s *stubSpell) Key() string { return s.key }
func (s *stubSpell) Invoke(ctx context.Context, session Session) error {
	s.invoked++
	return nil
}
func (s *stubSpell) Render() Fragment { return Fragment{Script: "// " + s.key} }

func TestRegistryLookup(t *testing.T) {
	t.Parallel()

	adminAny := &stubSpell{key: "/admin:*"}
	adminClick := &stubSpell{key: "/admin:click"}
	dataAny := &stubSpell{key: "/data:*"}

	reg, err := NewRegistry(adminAny, adminClick, dataAny)
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Len())

	tests := []struct {
		name      string
		page      string
		eventType string
		want      []Spell
	}{
		{"wildcard matches any event", "/admin", "mouseover", []Spell{adminAny}},
		{"exact event also picks up wildcard", "/admin", "click", []Spell{adminClick, adminAny}},
		{"empty event means wildcard", "/admin", "", []Spell{adminAny}},
		{"explicit wildcard", "/admin", "*", []Spell{adminAny}},
		{"other page", "/data", "click", []Spell{dataAny}},
		{"unknown page", "/nowhere", "click", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reg.Lookup(tt.page, tt.eventType)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.Same(t, tt.want[i], got[i])
			}
		})
	}
}

func TestRegistryRejectsMalformedKey(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(&stubSpell{key: "no-colon-here"})
	assert.Error(t, err)
}

func TestRegistryLookupReturnsCopy(t *testing.T) {
	t.Parallel()

	adminAny := &stubSpell{key: "/admin:*"}
	reg, err := NewRegistry(adminAny)
	require.NoError(t, err)

	first := reg.Lookup("/admin", "click")
	require.Len(t, first, 1)
	first[0] = nil

	again := reg.Lookup("/admin", "click")
	require.Len(t, again, 1)
	assert.Same(t, adminAny, again[0])
}

func TestRegistryKeys(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(
		&stubSpell{key: "/data:*"},
		&stubSpell{key: "/admin:*"},
		&stubSpell{key: "/admin:click"},
	)
	require.NoError(t, err)
	assert.Equal(t, []string{"/admin:*", "/admin:click", "/data:*"}, reg.Keys())
}

func TestSpellKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/admin:*", SpellKey("/admin", ""))
	assert.Equal(t, "/admin:click", SpellKey("/admin", "click"))

	page, event, ok := splitKey("/admin:click")
	require.True(t, ok)
	assert.Equal(t, "/admin", page)
	assert.Equal(t, "click", event)

	_, _, ok = splitKey("nope")
	assert.False(t, ok)
}
