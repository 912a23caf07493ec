// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

/*
Package services provides suture.Service wrappers for Spellbook components.

Each wrapper translates an existing lifecycle pattern into suture's
context-aware Serve pattern:

	type Service interface {
	    Serve(ctx context.Context) error
	}

HTTPServerService wraps *http.Server: ListenAndServe runs in a goroutine,
context cancellation triggers a bounded graceful Shutdown. The keep-alive
task in the thoughtspot package implements suture.Service directly and
needs no wrapper here.
*/
package services
