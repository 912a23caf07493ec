// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

package thoughtspot

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/boonhapus/spellbook-thoughtspot/internal/logging"
	"github.com/boonhapus/spellbook-thoughtspot/internal/metrics"
)

// KeepAlive prevents an authenticated ThoughtSpot session from expiring due
// to inactivity by probing session/isactive on a fixed cadence.
//
// The loop is best-effort: a failed probe (transport or HTTP error) is
// logged as a warning and never terminates the loop. The only way out is
// context cancellation, which produces a clean exit. KeepAlive implements
// suture.Service so it can run under the supervisor tree.
type KeepAlive struct {
	client   *Client
	interval time.Duration
	checks   atomic.Int64
}

// NewKeepAlive creates a keep-alive task for an authenticated client.
// A non-positive interval falls back to the 60 second default.
func NewKeepAlive(client *Client, interval time.Duration) *KeepAlive {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &KeepAlive{client: client, interval: interval}
}

// Serve runs the keep-alive loop until ctx is canceled.
//
// Implements suture.Service. Returning ctx.Err() on cancellation tells the
// supervisor this is a normal stop, not a crash.
func (k *KeepAlive) Serve(ctx context.Context) error {
	logging.Info().
		Dur("interval", k.interval).
		Str("user", k.client.Username()).
		Msg("Starting session keep-alive")

	for {
		if err := k.client.IsActive(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.KeepAliveChecks.WithLabelValues("error").Inc()
			logging.Warn().Err(err).Msg("ThoughtSpot api keep-alive failed, retrying...")
		} else {
			metrics.KeepAliveChecks.WithLabelValues("ok").Inc()
		}
		k.checks.Add(1)

		select {
		case <-ctx.Done():
			logging.Info().Str("user", k.client.Username()).Msg("Session keep-alive stopped")
			return ctx.Err()
		case <-time.After(k.interval):
		}
	}
}

// Checks returns how many liveness probes have been attempted.
func (k *KeepAlive) Checks() int64 {
	return k.checks.Load()
}

// String implements fmt.Stringer so suture logs identify the service.
func (k *KeepAlive) String() string {
	return "thoughtspot-keepalive"
}
