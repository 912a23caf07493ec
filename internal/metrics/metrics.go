// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

// Package metrics provides Prometheus metrics for Spellbook observability.
//
// Metrics are exposed at the /metrics endpoint in Prometheus text format
// and cover the ThoughtSpot API client, the keep-alive task, the security
// log collector, and the HTTP surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginsTotal counts login attempts against the ThoughtSpot API.
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spellbook_logins_total",
			Help: "Total number of ThoughtSpot login attempts",
		},
		[]string{"result"}, // "success", "unauthorized", "error"
	)

	// KeepAliveChecks counts liveness probes issued by the keep-alive task.
	KeepAliveChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spellbook_keepalive_checks_total",
			Help: "Total number of session keep-alive liveness checks",
		},
		[]string{"result"}, // "ok", "error"
	)

	// LogFetchesTotal counts windowed logs/fetch calls.
	LogFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spellbook_log_fetches_total",
			Help: "Total number of windowed security log fetches",
		},
		[]string{"mode", "result"}, // mode: "backfill", "streaming"; result: "ok", "empty", "error"
	)

	// LogRecordsTotal counts security log records collected.
	LogRecordsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "spellbook_log_records_total",
			Help: "Total number of security audit log records collected",
		},
	)

	// ActiveLifetimes tracks authenticated browser sessions.
	ActiveLifetimes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spellbook_active_lifetimes",
			Help: "Current number of authenticated connection lifetimes",
		},
	)

	// SpellInvocations counts spell lookups that produced work.
	SpellInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spellbook_spell_invocations_total",
			Help: "Total number of spell invocations",
		},
		[]string{"key", "result"}, // result: "ok", "error"
	)

	// HTTPRequestsTotal counts requests on the API surface.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spellbook_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	// HTTPRequestDuration measures API request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "spellbook_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// ObserveHTTPRequest records one completed HTTP request.
func ObserveHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
