// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

/*
Package main is the entry point for the Spellbook server application.

Spellbook augments the ThoughtSpot admin experience. A browser snippet
embedded in the ThoughtSpot UI reports page navigations and UI events to
this server; the server invokes the spells bound to those events and
returns script/style fragments for the snippet to inject. Each connected
browser gets its own authenticated ThoughtSpot session, kept alive by a
supervised background task, and the security audit log can be collected
over arbitrary time ranges through the windowed collection engine.

# Application Architecture

The server implements a layered architecture with Suture v4 process
supervision:

	RootSupervisor ("spellbook")
	├── SessionsSupervisor ("sessions-layer")
	│   └── KeepAlive services (one per connection lifetime, added and
	│       removed dynamically as browsers log in and out)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (chi router)

# Configuration

Configuration is loaded via Koanf v2 with layered sources (highest
priority wins):

	Priority: Environment variables > Config file > Defaults

Core environment variables:

	# Server
	SERVER_PORT=5002             # HTTP server port
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console

	# Dev auto-login (optional; all three must be set together)
	THOUGHTSPOT_HOST=https://customer.thoughtspot.cloud
	THOUGHTSPOT_USERNAME=tsadmin
	THOUGHTSPOT_SECRET_KEY=<trusted-auth secret, UUID>

	# Tuning
	KEEPALIVE_INTERVAL=60s       # liveness probe cadence
	COLLECTOR_WINDOW_SIZE=24h    # span of one logs/fetch call
	COLLECTOR_POLL_TIMEOUT=5s    # collection loop poll bound
	COLLECTOR_EMPTY_BACKOFF=5s   # pause after an empty streaming round

# Signal Handling

The server handles graceful shutdown on SIGINT and SIGTERM:

 1. Stops accepting new HTTP connections
 2. Waits for in-flight requests (10s timeout)
 3. Removes every lifetime's keep-alive from the sessions layer
 4. Reports any services that failed to stop

# Usage Examples

Development with auto-login:

	export THOUGHTSPOT_HOST=https://customer.thoughtspot.cloud
	export THOUGHTSPOT_USERNAME=tsadmin
	export THOUGHTSPOT_SECRET_KEY=3bf39be8-7f91-4b33-a8d9-3d6f5224fdc4
	go run ./cmd/server

Production (sessions created through the login endpoint):

	export SERVER_PORT=5002
	export SERVER_CORS_ORIGINS=https://customer.thoughtspot.cloud
	./spellbook

# See Also

  - internal/config: Configuration management
  - internal/supervisor: Process supervision
  - internal/api: HTTP handlers and routing
  - internal/thoughtspot: Session client and log collection engine
  - internal/spellbook: Spell registry and built-in spells
*/
package main
