// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

// Package thoughtspot implements the ThoughtSpot REST API client that the
// rest of Spellbook is built around.
//
// The package has three pieces:
//
//   - Client: a thin, authenticated shim over the ThoughtSpot REST API with
//     fixed identity headers, a long request timeout, and bearer-token
//     lifecycle management.
//   - KeepAlive: a supervised background task that probes session/isactive
//     on a fixed cadence so the authenticated session never expires from
//     inactivity.
//   - Collector: the windowed, concurrent security audit log collection
//     engine, operating either as a bounded historical backfill or as an
//     unbounded streaming tail.
//
// A caller obtains a Client via Login, then independently starts a KeepAlive
// and (optionally) a Collector against the same authenticated session.
package thoughtspot
