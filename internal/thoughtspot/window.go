// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

package thoughtspot

import (
	"fmt"
	"time"
)

// Window is a half-open UTC interval [Since, Until) bounding a single
// logs/fetch call.
type Window struct {
	Since time.Time
	Until time.Time
}

// NewWindow builds a window, normalizing both bounds to UTC.
func NewWindow(since, until time.Time) Window {
	return Window{Since: since.UTC(), Until: until.UTC()}
}

// Validate enforces the window invariant: both bounds set, Since < Until.
func (w Window) Validate() error {
	if w.Since.IsZero() || w.Until.IsZero() {
		return fmt.Errorf("window bounds must be set: %s", w)
	}
	if !w.Since.Before(w.Until) {
		return fmt.Errorf("window since must precede until: %s", w)
	}
	return nil
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Since.Format(time.RFC3339), w.Until.Format(time.RFC3339))
}

// PartitionWindows splits [since, until) into consecutive windows of the
// given size. The final window is truncated at until. Bounds are normalized
// to UTC first. An inverted or empty range yields no windows.
func PartitionWindows(since, until time.Time, size time.Duration) []Window {
	since, until = since.UTC(), until.UTC()
	if size <= 0 || !since.Before(until) {
		return nil
	}

	var windows []Window
	for cursor := since; cursor.Before(until); cursor = cursor.Add(size) {
		end := cursor.Add(size)
		if end.After(until) {
			end = until
		}
		windows = append(windows, Window{Since: cursor, Until: end})
	}
	return windows
}
