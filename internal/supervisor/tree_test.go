// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

package supervisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// countingService is a restartable service that tracks its Serve calls.
type countingService struct {
	name   string
	serves atomic.Int32
	fail   atomic.Bool
}

func (s *countingService) Serve(ctx context.Context) error {
	s.serves.Add(1)
	if s.fail.Load() {
		return errors.New("splinch")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *countingService) String() string { return s.name }

func TestNewTreeAppliesDefaults(t *testing.T) {
	tree, err := NewTree(quietLogger(), TreeConfig{})
	require.NoError(t, err)

	assert.Equal(t, 5.0, tree.config.FailureThreshold)
	assert.Equal(t, 30.0, tree.config.FailureDecay)
	assert.Equal(t, 15*time.Second, tree.config.FailureBackoff)
	assert.Equal(t, 10*time.Second, tree.config.ShutdownTimeout)
	assert.NotNil(t, tree.Root())
}

func TestTreeServeAndShutdown(t *testing.T) {
	tree, err := NewTree(quietLogger(), DefaultTreeConfig())
	require.NoError(t, err)

	session := &countingService{name: "session-svc"}
	api := &countingService{name: "api-svc"}
	tree.AddSessionService(session)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	require.Eventually(t, func() bool {
		return session.serves.Load() >= 1 && api.serves.Load() >= 1
	}, 5*time.Second, 5*time.Millisecond, "services never started")

	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("tree did not stop after cancellation")
	}
}

func TestTreeRestartsCrashedService(t *testing.T) {
	tree, err := NewTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})
	require.NoError(t, err)

	svc := &countingService{name: "crashy"}
	svc.fail.Store(true)
	tree.AddSessionService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	require.Eventually(t, func() bool { return svc.serves.Load() >= 2 },
		5*time.Second, 5*time.Millisecond, "crashed service was not restarted")

	svc.fail.Store(false)
	cancel()
	<-errCh
}

func TestTreeRemoveSessionService(t *testing.T) {
	tree, err := NewTree(quietLogger(), DefaultTreeConfig())
	require.NoError(t, err)

	svc := &countingService{name: "removable"}
	token := tree.AddSessionService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := tree.ServeBackground(ctx)

	require.Eventually(t, func() bool { return svc.serves.Load() >= 1 },
		5*time.Second, 5*time.Millisecond)

	require.NoError(t, tree.RemoveSessionService(token, time.Second))

	// The removed service must not be restarted.
	settled := svc.serves.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, svc.serves.Load())

	cancel()
	<-errCh
}
