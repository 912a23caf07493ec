// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

package thoughtspot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boonhapus/spellbook-thoughtspot/internal/config"
)

// fakeLogServer routes logs/fetch calls by their window start and records
// every request it sees.
type fakeLogServer struct {
	t  *testing.T
	mu sync.Mutex

	// respond maps a window start (unix millis) to a handler result.
	respond func(req logsFetchRequest) (status int, body string)

	requests []logsFetchRequest
	seenAt   []time.Time
	srv      *httptest.Server
}

func newFakeLogServer(t *testing.T, respond func(req logsFetchRequest) (int, string)) *fakeLogServer {
	f := &fakeLogServer{t: t, respond: respond}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/"+endpointLogsFetch, r.URL.Path)

		var req logsFetchRequest
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &req))

		f.mu.Lock()
		f.requests = append(f.requests, req)
		f.seenAt = append(f.seenAt, time.Now())
		f.mu.Unlock()

		status, resp := respond(req)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLogServer) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeLogServer) request(i int) logsFetchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[i]
}

func (f *fakeLogServer) requestTime(i int) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seenAt[i]
}

func newTestCollector(f *fakeLogServer, cfg config.CollectorConfig) *Collector {
	return NewCollector(newTestClient(f.srv), cfg)
}

// record builds a minimal audit log record JSON.
func record(date string) string {
	return fmt.Sprintf(`{"date": %q, "note": "event at %s"}`, date, date)
}

func TestBackfillMergesInWindowOrder(t *testing.T) {
	t.Parallel()

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 1, 1, 2, 30, 0, 0, time.UTC)
	w1 := since
	w2 := since.Add(time.Hour)
	w3 := since.Add(2 * time.Hour)

	f := newFakeLogServer(t, func(req logsFetchRequest) (int, string) {
		switch req.StartEpochTimeInMillis {
		case w1.UnixMilli():
			// Delay the first window so it completes LAST; the merge must
			// still come out in window-chronological order.
			time.Sleep(150 * time.Millisecond)
			return http.StatusOK, "[" + record("2024-01-01T00:10:00Z") + "," + record("2024-01-01T00:20:00Z") + "]"
		case w2.UnixMilli():
			return http.StatusOK, "[]"
		case w3.UnixMilli():
			return http.StatusOK, "[" + record("2024-01-01T02:15:00Z") + "]"
		default:
			t.Errorf("unexpected window start %d", req.StartEpochTimeInMillis)
			return http.StatusBadRequest, "{}"
		}
	})

	col := newTestCollector(f, config.CollectorConfig{
		WindowSize:   time.Hour,
		PollTimeout:  20 * time.Millisecond,
		EmptyBackoff: 20 * time.Millisecond,
	})

	out, err := col.Collect(context.Background(), CollectOptions{Since: since, Until: until})
	require.NoError(t, err)

	batch, ok := <-out
	require.True(t, ok, "expected one merged batch")

	assert.True(t, batch.Merged)
	assert.False(t, batch.Partial)
	assert.Empty(t, batch.FailedWindows)
	assert.Equal(t, http.StatusOK, batch.StatusCode)

	require.Len(t, batch.Events, 3)
	assert.Equal(t, "2024-01-01T00:10:00Z", batch.Events[0].Date)
	assert.Equal(t, "2024-01-01T00:20:00Z", batch.Events[1].Date)
	assert.Equal(t, "2024-01-01T02:15:00Z", batch.Events[2].Date)

	_, ok = <-out
	assert.False(t, ok, "channel must close after the merged batch")

	assert.Equal(t, 3, f.requestCount(), "exactly one fetch per window")
}

func TestBackfillPartialOnWindowFailure(t *testing.T) {
	t.Parallel()

	since := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	failing := since.Add(24 * time.Hour)

	f := newFakeLogServer(t, func(req logsFetchRequest) (int, string) {
		if req.StartEpochTimeInMillis == failing.UnixMilli() {
			return http.StatusInternalServerError, `{"error": "upstream exploded"}`
		}
		date := time.UnixMilli(req.StartEpochTimeInMillis).UTC().Format(time.RFC3339)
		return http.StatusOK, "[" + record(date) + "]"
	})

	col := newTestCollector(f, config.CollectorConfig{
		WindowSize:   24 * time.Hour,
		PollTimeout:  20 * time.Millisecond,
		EmptyBackoff: 20 * time.Millisecond,
	})

	out, err := col.Collect(context.Background(), CollectOptions{Since: since, Until: until})
	require.NoError(t, err)

	batch, ok := <-out
	require.True(t, ok)

	// The failed window is reported, everything else is still returned.
	assert.True(t, batch.Partial)
	require.Len(t, batch.FailedWindows, 1)
	assert.Equal(t, failing, batch.FailedWindows[0].Since)
	require.Len(t, batch.Events, 2)
	assert.Equal(t, since.Format(time.RFC3339), batch.Events[0].Date)
}

func TestBackfillCancellationEmitsNothing(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	f := newFakeLogServer(t, func(req logsFetchRequest) (int, string) {
		<-release
		return http.StatusOK, "[]"
	})
	defer close(release)

	col := newTestCollector(f, config.CollectorConfig{
		WindowSize:   24 * time.Hour,
		PollTimeout:  10 * time.Millisecond,
		EmptyBackoff: 10 * time.Millisecond,
	})

	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := since.Add(48 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	out, err := col.Collect(ctx, CollectOptions{Since: since, Until: until})
	require.NoError(t, err)

	time.AfterFunc(50*time.Millisecond, cancel)

	select {
	case batch, ok := <-out:
		require.False(t, ok, "no batch may be emitted after cancellation, got %+v", batch)
	case <-time.After(5 * time.Second):
		t.Fatal("collector did not shut down after cancellation")
	}
}

func TestCollectOptionValidation(t *testing.T) {
	t.Parallel()

	col := NewCollector(NewClient(&config.ThoughtSpotConfig{Host: "http://localhost:1"}), config.CollectorConfig{})

	_, err := col.Collect(context.Background(), CollectOptions{})
	assert.Error(t, err, "since is required")

	now := time.Now().UTC()
	_, err = col.Collect(context.Background(), CollectOptions{Since: now, Until: now.Add(-time.Hour)})
	assert.Error(t, err, "inverted range must be rejected")
}

func TestStreamingContinuationUsesNewestRecordDate(t *testing.T) {
	t.Parallel()

	fixedNow := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	since := fixedNow.Add(-2 * time.Hour)
	newest := time.Date(2024, 6, 1, 11, 30, 0, 0, time.UTC)

	f := newFakeLogServer(t, func(req logsFetchRequest) (int, string) {
		if req.StartEpochTimeInMillis == since.UnixMilli() {
			// Intentionally unsorted; the engine sorts descending itself.
			return http.StatusOK, "[" +
				record("2024-06-01T10:45:00Z") + "," +
				record(newest.Format(time.RFC3339)) + "," +
				record("2024-06-01T11:00:00Z") + "]"
		}
		return http.StatusOK, "[]"
	})

	col := newTestCollector(f, config.CollectorConfig{
		WindowSize:   24 * time.Hour,
		PollTimeout:  20 * time.Millisecond,
		EmptyBackoff: 20 * time.Millisecond,
	})
	col.now = func() time.Time { return fixedNow }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := col.Collect(ctx, CollectOptions{Since: since})
	require.NoError(t, err)

	// Drain batches so the stream never blocks on the consumer.
	first := make(chan Batch, 1)
	go func() {
		batch, ok := <-out
		if ok {
			first <- batch
		}
		for range out { //nolint:revive // draining until close
		}
	}()

	select {
	case batch := <-first:
		require.Len(t, batch.Events, 3)
		assert.Equal(t, since, batch.Window.Since)
	case <-time.After(5 * time.Second):
		t.Fatal("no streaming batch arrived")
	}

	// The follow-up window starts at the newest record's date and ends "now".
	require.Eventually(t, func() bool { return f.requestCount() >= 2 }, 5*time.Second, 5*time.Millisecond)
	next := f.request(1)
	assert.Equal(t, newest.UnixMilli(), next.StartEpochTimeInMillis)
	assert.Equal(t, fixedNow.UnixMilli(), next.EndEpochTimeInMillis)
}

func TestStreamingEmptyRoundBacksOff(t *testing.T) {
	t.Parallel()

	const backoff = 150 * time.Millisecond

	f := newFakeLogServer(t, func(req logsFetchRequest) (int, string) {
		return http.StatusOK, "[]"
	})

	col := newTestCollector(f, config.CollectorConfig{
		WindowSize:   24 * time.Hour,
		PollTimeout:  20 * time.Millisecond,
		EmptyBackoff: backoff,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := col.Collect(ctx, CollectOptions{Since: time.Now().UTC().Add(-time.Minute)})
	require.NoError(t, err)
	go func() {
		for range out { //nolint:revive // draining until close
		}
	}()

	require.Eventually(t, func() bool { return f.requestCount() >= 2 }, 5*time.Second, 5*time.Millisecond)

	gap := f.requestTime(1).Sub(f.requestTime(0))
	assert.GreaterOrEqual(t, gap, backoff, "an empty round must pause before re-polling")
}

func TestStreamingConvergesToSingleTailFetch(t *testing.T) {
	t.Parallel()

	fixedNow := time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)
	since := fixedNow.Add(-3 * time.Hour)
	tailDate := fixedNow.Add(-30 * time.Minute).Format(time.RFC3339)

	const backlogWindows = 3

	var (
		mu         sync.Mutex
		started    int
		inFlight   int
		steadyPeak int
	)

	f := newFakeLogServer(t, func(req logsFetchRequest) (int, string) {
		mu.Lock()
		started++
		n := started
		inFlight++
		if n > backlogWindows && inFlight > steadyPeak {
			steadyPeak = inFlight
		}
		mu.Unlock()

		// Enough latency that overlapping fetches would be observable.
		time.Sleep(30 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()

		return http.StatusOK, "[" + record(tailDate) + "]"
	})

	col := newTestCollector(f, config.CollectorConfig{
		WindowSize:   time.Hour,
		PollTimeout:  20 * time.Millisecond,
		EmptyBackoff: 20 * time.Millisecond,
	})
	col.now = func() time.Time { return fixedNow }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, err := col.Collect(ctx, CollectOptions{Since: since})
	require.NoError(t, err)
	go func() {
		for range out { //nolint:revive // draining until close
		}
	}()

	// Let the backlog drain and the tail poll several rounds.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return started >= backlogWindows+5
	}, 5*time.Second, 5*time.Millisecond)
	cancel()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, steadyPeak, "steady state must keep exactly one tail fetch in flight")
}

func TestStreamingCancellationClosesChannel(t *testing.T) {
	t.Parallel()

	f := newFakeLogServer(t, func(req logsFetchRequest) (int, string) {
		return http.StatusOK, "[]"
	})

	col := newTestCollector(f, config.CollectorConfig{
		WindowSize:   24 * time.Hour,
		PollTimeout:  10 * time.Millisecond,
		EmptyBackoff: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	out, err := col.Collect(ctx, CollectOptions{Since: time.Now().UTC().Add(-time.Minute)})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range out { //nolint:revive // draining until close
		}
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream channel did not close after cancellation")
	}
}

func TestSecurityEventRoundTrip(t *testing.T) {
	t.Parallel()

	raw := `{"date":"2024-01-01T10:30:00Z","user":"tsadmin","action":"LOGIN"}`

	var event SecurityEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &event))
	assert.Equal(t, "2024-01-01T10:30:00Z", event.Date)

	ts, err := event.Timestamp()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC), ts)

	// The record is preserved verbatim on the way back out.
	encoded, err := json.Marshal(event)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(encoded))
}

func TestSecurityEventDateFormats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		date     string
		expected time.Time
		wantErr  bool
	}{
		{"2024-01-01T10:30:00Z", time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC), false},
		{"2024-01-01T10:30:00", time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC), false},
		{"2024-01-01 10:30:00", time.Date(2024, 1, 1, 10, 30, 0, 0, time.UTC), false},
		{"yesterday", time.Time{}, true},
		{"", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			ts, err := SecurityEvent{Date: tt.date}.Timestamp()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ts)
		})
	}
}
