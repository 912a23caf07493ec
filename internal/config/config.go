// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

// Package config provides layered configuration loading for Spellbook.
//
// Configuration is loaded via Koanf v2 with the following precedence
// (highest wins):
//
//  1. Environment variables (THOUGHTSPOT_HOST, HTTP_PORT, LOG_LEVEL, ...)
//  2. Optional YAML config file (config.yaml, or CONFIG_PATH)
//  3. Built-in defaults
//
// The ThoughtSpot credentials are optional at startup: in the normal flow
// every browser session supplies its own host and secret key through the
// login endpoint. Pre-seeding them in config enables the dev auto-login
// convenience.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the Spellbook server.
type Config struct {
	ThoughtSpot ThoughtSpotConfig `koanf:"thoughtspot"`
	Server      ServerConfig      `koanf:"server"`
	KeepAlive   KeepAliveConfig   `koanf:"keepalive"`
	Collector   CollectorConfig   `koanf:"collector"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ThoughtSpotConfig holds the upstream ThoughtSpot cluster settings.
type ThoughtSpotConfig struct {
	// Host is the cluster base URL, e.g. https://customer.thoughtspot.cloud.
	Host string `koanf:"host" validate:"omitempty,url"`

	// Username and SecretKey authenticate the admin session. The secret key
	// is the trusted-auth secret from the ThoughtSpot developer settings.
	Username  string `koanf:"username"`
	SecretKey string `koanf:"secret_key" validate:"omitempty,uuid"`

	// TokenValidity is the requested bearer token lifetime.
	TokenValidity time.Duration `koanf:"token_validity"`

	// Timeout is the per-request HTTP timeout. Some ThoughtSpot endpoints
	// are slow bulk operations, hence the long default of 5 minutes.
	Timeout time.Duration `koanf:"timeout" validate:"min=1s"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// CORSOrigins lists allowed origins for the embedded SDK pages.
	CORSOrigins []string `koanf:"cors_origins"`

	// LoginRateLimit throttles the login endpoint (requests per window).
	LoginRateLimit  int           `koanf:"login_rate_limit" validate:"min=1"`
	LoginRateWindow time.Duration `koanf:"login_rate_window"`
}

// KeepAliveConfig controls the session keep-alive task.
type KeepAliveConfig struct {
	// Interval between liveness probes against session/isactive.
	Interval time.Duration `koanf:"interval" validate:"min=1s"`
}

// CollectorConfig controls the security log collection engine.
type CollectorConfig struct {
	// WindowSize is the span of a single logs/fetch call.
	WindowSize time.Duration `koanf:"window_size" validate:"min=1m"`

	// PollTimeout bounds each wait for an in-flight fetch to complete so
	// the collection loop can re-check for new work.
	PollTimeout time.Duration `koanf:"poll_timeout" validate:"min=100ms"`

	// EmptyBackoff is the pause after a streaming round yields no records.
	EmptyBackoff time.Duration `koanf:"empty_backoff" validate:"min=100ms"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values applied. Defaults
// are loaded first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		ThoughtSpot: ThoughtSpotConfig{
			Host:          "",
			Username:      "",
			SecretKey:     "",
			TokenValidity: 60000 * time.Second,
			Timeout:       300 * time.Second,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5002,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
			LoginRateLimit:  10,
			LoginRateWindow: time.Minute,
		},
		KeepAlive: KeepAliveConfig{
			Interval: 60 * time.Second,
		},
		Collector: CollectorConfig{
			WindowSize:   24 * time.Hour,
			PollTimeout:  5 * time.Second,
			EmptyBackoff: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// validate is shared; validator.New is relatively expensive.
var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// The dev auto-login credentials travel together.
	seeded := 0
	for _, v := range []string{c.ThoughtSpot.Host, c.ThoughtSpot.Username, c.ThoughtSpot.SecretKey} {
		if v != "" {
			seeded++
		}
	}
	if seeded != 0 && seeded != 3 {
		return fmt.Errorf("thoughtspot host, username and secret_key must be set together")
	}

	return nil
}
