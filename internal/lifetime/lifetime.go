// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

// Package lifetime tracks per-connection state.
//
// A Lifetime is created when a browser authenticates and lives until logout
// or server shutdown. It owns the authenticated ThoughtSpot client, the
// keep-alive task that holds the session open, the page the browser last
// reported, and the spells active on that page.
package lifetime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/thejerf/suture/v4"

	"github.com/boonhapus/spellbook-thoughtspot/internal/logging"
	"github.com/boonhapus/spellbook-thoughtspot/internal/metrics"
	"github.com/boonhapus/spellbook-thoughtspot/internal/spellbook"
	"github.com/boonhapus/spellbook-thoughtspot/internal/thoughtspot"
)

// removeTimeout bounds how long Remove waits for a keep-alive to stop.
const removeTimeout = 5 * time.Second

// ServiceRunner runs keep-alive tasks for the store. Satisfied by
// supervisor.Tree, which places them under its sessions layer.
type ServiceRunner interface {
	AddSessionService(svc suture.Service) suture.ServiceToken
	RemoveSessionService(token suture.ServiceToken, timeout time.Duration) error
}

// Lifetime is the state of one authenticated connection.
type Lifetime struct {
	id        uuid.UUID
	createdAt time.Time
	client    *thoughtspot.Client
	keepAlive suture.ServiceToken

	mu           sync.RWMutex
	currentPage  string
	activeSpells []spellbook.Spell
}

// ID returns the lifetime's identifier, handed to the browser at login.
func (l *Lifetime) ID() uuid.UUID {
	return l.id
}

// CreatedAt returns when the connection authenticated.
func (l *Lifetime) CreatedAt() time.Time {
	return l.createdAt
}

// Client returns the authenticated ThoughtSpot API client.
func (l *Lifetime) Client() *thoughtspot.Client {
	return l.client
}

// CurrentPage returns the page the browser last navigated to.
func (l *Lifetime) CurrentPage() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.currentPage
}

// SetCurrentPage records a page navigation and resets the active spells;
// spells bind to pages, so leaving a page deactivates them.
func (l *Lifetime) SetCurrentPage(page string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.currentPage = page
	l.activeSpells = nil
}

// ActiveSpells returns the spells currently active on the connection.
func (l *Lifetime) ActiveSpells() []spellbook.Spell {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]spellbook.Spell, len(l.activeSpells))
	copy(out, l.activeSpells)
	return out
}

// SetActiveSpells replaces the connection's active spell set.
func (l *Lifetime) SetActiveSpells(spells []spellbook.Spell) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.activeSpells = spells
}

// Store is the concurrency-safe set of live connection lifetimes.
type Store struct {
	runner            ServiceRunner
	keepAliveInterval time.Duration

	mu        sync.RWMutex
	lifetimes map[uuid.UUID]*Lifetime
}

// NewStore creates an empty lifetime store. Keep-alive tasks for new
// lifetimes run under the given runner, probing on the given interval.
func NewStore(runner ServiceRunner, keepAliveInterval time.Duration) *Store {
	return &Store{
		runner:            runner,
		keepAliveInterval: keepAliveInterval,
		lifetimes:         make(map[uuid.UUID]*Lifetime),
	}
}

// Create registers a lifetime for an authenticated client and starts its
// keep-alive task. The task runs until Remove or CloseAll.
func (s *Store) Create(client *thoughtspot.Client) *Lifetime {
	keepAlive := thoughtspot.NewKeepAlive(client, s.keepAliveInterval)

	l := &Lifetime{
		id:          uuid.New(),
		createdAt:   time.Now().UTC(),
		client:      client,
		keepAlive:   s.runner.AddSessionService(keepAlive),
		currentPage: "/",
	}

	s.mu.Lock()
	s.lifetimes[l.id] = l
	s.mu.Unlock()

	metrics.ActiveLifetimes.Inc()
	return l
}

// Get looks up a lifetime by ID.
func (s *Store) Get(id uuid.UUID) (*Lifetime, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.lifetimes[id]
	return l, ok
}

// Remove tears down a lifetime: its keep-alive task is stopped and waited
// for before the lifetime is forgotten. Removing an unknown ID is a no-op.
func (s *Store) Remove(id uuid.UUID) {
	s.mu.Lock()
	l, ok := s.lifetimes[id]
	if ok {
		delete(s.lifetimes, id)
	}
	s.mu.Unlock()

	if !ok {
		return
	}

	s.stopKeepAlive(l)
	metrics.ActiveLifetimes.Dec()
}

// Len returns the number of live connections.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lifetimes)
}

// CloseAll tears down every lifetime. Used at server shutdown.
func (s *Store) CloseAll() {
	s.mu.Lock()
	lifetimes := make([]*Lifetime, 0, len(s.lifetimes))
	for id, l := range s.lifetimes {
		lifetimes = append(lifetimes, l)
		delete(s.lifetimes, id)
	}
	s.mu.Unlock()

	for _, l := range lifetimes {
		s.stopKeepAlive(l)
		metrics.ActiveLifetimes.Dec()
	}
}

func (s *Store) stopKeepAlive(l *Lifetime) {
	if err := s.runner.RemoveSessionService(l.keepAlive, removeTimeout); err != nil {
		logging.Warn().
			Err(err).
			Str("lifetime_id", l.id.String()).
			Msg("Keep-alive did not stop cleanly")
	}
}
