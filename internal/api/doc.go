// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

/*
Package api provides the HTTP JSON surface for Spellbook.

The surface is deliberately thin: no HTML rendering, no cookies. A browser
(or the embedded ThoughtSpot SDK shim) authenticates via POST /api/login and
receives a lifetime ID, carried on every subsequent request in the
X-Spellbook-Lifetime header.

Endpoints:

  - POST /api/login        — authenticate, create a connection lifetime
  - POST /api/logout       — tear the lifetime down (stops its keep-alive)
  - POST /api/page         — record the embedded product's current page
  - POST /api/spells       — look up, invoke and render spells for a UI event
  - POST /api/users/search — proxy a ThoughtSpot user search
  - GET  /api/logs/security — windowed security audit log backfill
  - GET  /healthz, GET /metrics

Routing uses chi with its RequestID/RealIP/Recoverer/Timeout middleware,
go-chi/cors for the embedded SDK origins, and go-chi/httprate on the login
route.
*/
package api
