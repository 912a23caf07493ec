// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

package thoughtspot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"github.com/boonhapus/spellbook-thoughtspot/internal/config"
	"github.com/boonhapus/spellbook-thoughtspot/internal/logging"
	"github.com/boonhapus/spellbook-thoughtspot/internal/metrics"
)

// SecurityEvent is one security audit log record. The raw JSON is kept
// verbatim so callers see exactly what the cluster returned; the date field
// is extracted for streaming continuation.
type SecurityEvent struct {
	Date string
	Raw  json.RawMessage
}

// UnmarshalJSON captures the record verbatim and probes its date field.
func (e *SecurityEvent) UnmarshalJSON(data []byte) error {
	var probe struct {
		Date string `json:"date"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	e.Date = probe.Date
	e.Raw = append(e.Raw[:0], data...)
	return nil
}

// MarshalJSON emits the original record unchanged.
func (e SecurityEvent) MarshalJSON() ([]byte, error) {
	if len(e.Raw) > 0 {
		return e.Raw, nil
	}
	return json.Marshal(struct {
		Date string `json:"date"`
	}{Date: e.Date})
}

// eventDateFormats lists the date layouts the cluster is known to emit.
var eventDateFormats = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Timestamp parses the record's date field.
func (e SecurityEvent) Timestamp() (time.Time, error) {
	for _, layout := range eventDateFormats {
		if ts, err := time.ParseInLocation(layout, e.Date, time.UTC); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable event date %q", e.Date)
}

// Batch is the outcome of one completed window fetch (streaming mode), or
// the single merged result of a whole backfill run.
type Batch struct {
	// Window that produced this batch. Zero for the merged backfill batch.
	Window Window

	// StatusCode of the upstream response, or 200 for the merged batch.
	StatusCode int

	// Events holds the decoded records. For the merged batch they are in
	// window-chronological order regardless of completion order.
	Events []SecurityEvent

	// Merged marks the final synthesized backfill batch.
	Merged bool

	// Partial marks a merged batch where one or more windows failed;
	// FailedWindows lists them. Whatever was collected is still returned.
	Partial       bool
	FailedWindows []Window
}

// CollectOptions bound a collection run.
type CollectOptions struct {
	// Since is the inclusive start of the range. Required.
	Since time.Time

	// Until is the exclusive end of the range. Zero means streaming mode:
	// the collector treats "now" as the initial upper bound and then tails
	// the log indefinitely.
	Until time.Time
}

// Collector is the windowed, concurrent security log collection engine.
//
// Backfill mode fetches a fixed set of windows concurrently and emits one
// merged Batch. Streaming mode emits each window's Batch as it completes
// (completion order, not necessarily chronological) and keeps advancing the
// tail window from the most recently completed batch.
type Collector struct {
	client       *Client
	windowSize   time.Duration
	pollTimeout  time.Duration
	emptyBackoff time.Duration

	// now is swappable for tests.
	now func() time.Time
}

// NewCollector creates a collection engine over an authenticated client.
func NewCollector(client *Client, cfg config.CollectorConfig) *Collector {
	windowSize := cfg.WindowSize
	if windowSize <= 0 {
		windowSize = 24 * time.Hour
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	emptyBackoff := cfg.EmptyBackoff
	if emptyBackoff <= 0 {
		emptyBackoff = 5 * time.Second
	}
	return &Collector{
		client:       client,
		windowSize:   windowSize,
		pollTimeout:  pollTimeout,
		emptyBackoff: emptyBackoff,
		now:          time.Now,
	}
}

// Collect starts a collection run and returns the batch channel. The
// channel is closed when a backfill completes, or when ctx is canceled.
// Cancellation aborts remaining fetches without emitting further batches;
// a canceled backfill emits no merged batch.
func (c *Collector) Collect(ctx context.Context, opts CollectOptions) (<-chan Batch, error) {
	if opts.Since.IsZero() {
		return nil, errors.New("collect: since is required")
	}
	since := opts.Since.UTC()

	streaming := opts.Until.IsZero()
	final := c.now().UTC()
	if !streaming {
		final = opts.Until.UTC()
		if !since.Before(final) {
			return nil, fmt.Errorf("collect: since %s must precede until %s", since.Format(time.RFC3339), final.Format(time.RFC3339))
		}
	}

	out := make(chan Batch)
	go func() {
		defer close(out)
		if streaming {
			c.stream(ctx, since, out)
		} else {
			c.backfill(ctx, PartitionWindows(since, final, c.windowSize), out)
		}
	}()
	return out, nil
}

// fetchResult tags a completed fetch with the window it covered.
type fetchResult struct {
	index  int
	window Window
	resp   *APIResponse
	err    error
}

// fetch runs one window fetch and delivers its result, aborting the
// delivery if the run is canceled so no goroutine is left blocked.
func (c *Collector) fetch(ctx context.Context, index int, w Window, results chan<- fetchResult) {
	resp, err := c.client.FetchLogs(ctx, w)
	select {
	case results <- fetchResult{index: index, window: w, resp: resp, err: err}:
	case <-ctx.Done():
	}
}

// backfill fetches every window concurrently and emits exactly one merged
// batch once the pending set drains. Failed windows are recorded rather
// than discarding the whole run: the merged batch is tagged Partial and
// still carries everything that was collected.
func (c *Collector) backfill(ctx context.Context, windows []Window, out chan<- Batch) {
	results := make(chan fetchResult)
	for i, w := range windows {
		go c.fetch(ctx, i, w, results)
	}

	collected := make([][]SecurityEvent, len(windows))
	var failed []Window

	for remaining := len(windows); remaining > 0; {
		select {
		case <-ctx.Done():
			logging.Info().Int("remaining", remaining).Msg("Security log backfill canceled")
			return

		case res := <-results:
			remaining--
			events, ok := c.decodeResult(res, "backfill")
			if !ok {
				failed = append(failed, res.window)
				continue
			}
			collected[res.index] = events

		case <-time.After(c.pollTimeout):
			// Bounded wait so the loop re-checks for cancellation even
			// when no fetch has completed yet.
		}
	}

	var merged []SecurityEvent
	for _, events := range collected {
		merged = append(merged, events...)
	}

	sort.SliceStable(failed, func(i, j int) bool { return failed[i].Since.Before(failed[j].Since) })

	batch := Batch{
		StatusCode:    http.StatusOK,
		Events:        merged,
		Merged:        true,
		Partial:       len(failed) > 0,
		FailedWindows: failed,
	}

	select {
	case out <- batch:
	case <-ctx.Done():
	}
}

// decodeResult turns one fetch result into events. Returns ok=false when
// the window must be counted as failed (transport error, HTTP error status,
// undecodable body). An empty 2xx body is a soft "no content" condition.
func (c *Collector) decodeResult(res fetchResult, mode string) ([]SecurityEvent, bool) {
	if res.err != nil {
		metrics.LogFetchesTotal.WithLabelValues(mode, "error").Inc()
		logging.Error().Err(res.err).Stringer("window", res.window).Msg("Security log fetch failed")
		return nil, false
	}

	if !res.resp.IsSuccess() {
		metrics.LogFetchesTotal.WithLabelValues(mode, "error").Inc()
		logging.Warn().
			Int("status", res.resp.StatusCode).
			Stringer("window", res.window).
			Msg("Security log fetch returned an error status")
		return nil, false
	}

	var events []SecurityEvent
	if len(res.resp.Body) > 0 {
		if err := json.Unmarshal(res.resp.Body, &events); err != nil {
			metrics.LogFetchesTotal.WithLabelValues(mode, "error").Inc()
			logging.Error().Err(err).Stringer("window", res.window).Msg("Failed to decode security log response")
			return nil, false
		}
	}

	if len(events) == 0 {
		metrics.LogFetchesTotal.WithLabelValues(mode, "empty").Inc()
		logging.Warn().
			Int("status", res.resp.StatusCode).
			Stringer("window", res.window).
			Msg("No content (logs/fetch)")
		return nil, true
	}

	metrics.LogFetchesTotal.WithLabelValues(mode, "ok").Inc()
	metrics.LogRecordsTotal.Add(float64(len(events)))
	return events, true
}

// stream tails the security log indefinitely. The initial backlog windows
// are fetched concurrently; every completed batch is yielded in completion
// order. Once the backlog has drained, the stream converges to a single
// tail fetch whose window is derived from the most recently completed
// batch — its newest record date becomes the new since, "now" the new
// until. Empty rounds back off before polling again.
func (c *Collector) stream(ctx context.Context, since time.Time, out chan<- Batch) {
	results := make(chan fetchResult)

	cursor := since
	backlog := PartitionWindows(since, c.now().UTC(), c.windowSize)
	inFlight := len(backlog)
	for _, w := range backlog {
		go c.fetch(ctx, 0, w, results)
	}

	// No backlog to cover: open the tail immediately.
	if inFlight == 0 {
		w, ok := c.nextTailWindow(ctx, cursor)
		if !ok {
			return
		}
		inFlight = 1
		go c.fetch(ctx, 0, w, results)
	}

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("Security log streaming canceled")
			return

		case <-time.After(c.pollTimeout):
			// Re-check for cancellation while fetches are in flight.

		case res := <-results:
			inFlight--

			var events []SecurityEvent
			if res.err != nil {
				metrics.LogFetchesTotal.WithLabelValues("streaming", "error").Inc()
				logging.Warn().Err(res.err).Stringer("window", res.window).Msg("Security log fetch failed, re-polling")
			} else {
				events, _ = c.decodeResult(res, "streaming")

				// At-least-once delivery of every completed batch, in
				// completion order.
				batch := Batch{Window: res.window, StatusCode: res.resp.StatusCode, Events: events}
				select {
				case out <- batch:
				case <-ctx.Done():
					return
				}
			}

			if len(events) > 0 {
				// Newest record of this batch becomes the new lower bound.
				// Note this is the most recently COMPLETED batch, not a
				// global maximum across in-flight windows.
				sort.Slice(events, func(i, j int) bool { return events[i].Date > events[j].Date })
				if ts, err := events[0].Timestamp(); err == nil {
					cursor = ts
				} else {
					logging.Warn().Err(err).Msg("Cannot advance stream cursor, keeping previous")
				}
			}

			// While the backlog is draining, completed fetches only
			// advance the cursor. The tail opens once it is empty and
			// stays a single outstanding fetch from then on.
			if inFlight > 0 {
				continue
			}

			if len(events) == 0 && !c.sleep(ctx, c.emptyBackoff) {
				return
			}

			w, ok := c.nextTailWindow(ctx, cursor)
			if !ok {
				return
			}
			inFlight++
			go c.fetch(ctx, 0, w, results)
		}
	}
}

// nextTailWindow builds the next [cursor, now) window, waiting out the
// backoff while the cursor has not yet fallen behind the clock. Returns
// ok=false on cancellation.
func (c *Collector) nextTailWindow(ctx context.Context, cursor time.Time) (Window, bool) {
	for {
		w := NewWindow(cursor, c.now())
		if w.Validate() == nil {
			return w, true
		}
		if !c.sleep(ctx, c.emptyBackoff) {
			return Window{}, false
		}
	}
}

// sleep waits for d unless the run is canceled first.
func (c *Collector) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
