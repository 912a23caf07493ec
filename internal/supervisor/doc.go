// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

/*
Package supervisor provides process supervision for Spellbook using suture v4.

The tree organizes long-running work into two layers for failure isolation:

	RootSupervisor ("spellbook")
	├── SessionsSupervisor ("sessions-layer")
	│   └── per-connection keep-alive tasks
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A crashing keep-alive task restarts under the sessions layer without
affecting the HTTP surface, and vice versa.

Services implement suture.Service:

	type Service interface {
	    Serve(ctx context.Context) error
	}

Return behavior:
  - nil: stopped cleanly, will not be restarted
  - error: crashed, will be restarted with backoff
  - ctx.Err() after cancellation: normal shutdown

Supervisor events are logged through slog via the sutureslog adapter; the
logging package bridges those records into the global zerolog logger.
*/
package supervisor
