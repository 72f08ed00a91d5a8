// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

// Package config loads and validates Fanbeam configuration.
//
// Configuration is layered via Koanf v2 (highest priority wins):
//  1. Built-in defaults
//  2. Optional YAML config file
//  3. Environment variables with the FANBEAM_ prefix
package config

import (
	"fmt"
	"time"

	"github.com/fanbeam/fanbeam/internal/engagement"
	"github.com/fanbeam/fanbeam/internal/models"
)

// Config is the root configuration for the Fanbeam server.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Engagement EngagementConfig `koanf:"engagement"`
	EventBus   EventBusConfig   `koanf:"eventbus"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`

	// CORSOrigins lists allowed origins for the public ingest endpoints.
	// Empty means same-origin only.
	CORSOrigins []string `koanf:"cors_origins"`

	// Rate limiting for the public ingest endpoints.
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the database file path, or ":memory:" for ephemeral stores.
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB memory usage (e.g. "2GB").
	MaxMemory string `koanf:"max_memory"`

	// Threads limits DuckDB worker threads. 0 means runtime.NumCPU().
	Threads int `koanf:"threads"`

	// QueryTimeout bounds individual statements when the caller's context
	// carries no deadline.
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// EngagementConfig holds the tunable scoring constants. The weight table and
// intent thresholds are business knobs, so they live in configuration rather
// than code.
type EngagementConfig struct {
	ListenWeight   int `koanf:"listen_weight"`
	SocialWeight   int `koanf:"social_weight"`
	TipWeight      int `koanf:"tip_weight"`
	OtherWeight    int `koanf:"other_weight"`
	BaselineWeight int `koanf:"baseline_weight"`

	IntentHighVisits   int `koanf:"intent_high_visits"`
	IntentHighRecent   int `koanf:"intent_high_recent"`
	IntentMediumVisits int `koanf:"intent_medium_visits"`
	IntentMediumRecent int `koanf:"intent_medium_recent"`
}

// Accumulator converts the config section into the engagement package's
// runtime form.
func (c EngagementConfig) Accumulator() engagement.Config {
	return engagement.Config{
		Weights: map[models.ActionType]int{
			models.ActionListen: c.ListenWeight,
			models.ActionSocial: c.SocialWeight,
			models.ActionTip:    c.TipWeight,
			models.ActionOther:  c.OtherWeight,
		},
		BaselineWeight: c.BaselineWeight,
		Intent: engagement.IntentThresholds{
			HighVisits:   c.IntentHighVisits,
			HighRecent:   c.IntentHighRecent,
			MediumVisits: c.IntentMediumVisits,
			MediumRecent: c.IntentMediumRecent,
		},
	}
}

// EventBusConfig holds NATS JetStream settings for post-commit event fan-out.
type EventBusConfig struct {
	Enabled bool `koanf:"enabled"`

	// URL is the NATS server to connect to. Ignored when EmbeddedServer is set.
	URL string `koanf:"url"`

	// EmbeddedServer runs an in-process NATS server for single-binary
	// deployments.
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	Port           int    `koanf:"port"`

	StreamName      string        `koanf:"stream_name"`
	SubjectPrefix   string        `koanf:"subject_prefix"`
	MaxAge          time.Duration `koanf:"max_age"`
	DuplicateWindow time.Duration `koanf:"duplicate_window"`

	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`

	// Circuit breaker around publishes.
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the loaded configuration for values that would fail at
// runtime anyway, so misconfiguration surfaces at startup.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database.query_timeout must be positive, got %s", c.Database.QueryTimeout)
	}

	for name, w := range map[string]int{
		"listen_weight":   c.Engagement.ListenWeight,
		"social_weight":   c.Engagement.SocialWeight,
		"tip_weight":      c.Engagement.TipWeight,
		"other_weight":    c.Engagement.OtherWeight,
		"baseline_weight": c.Engagement.BaselineWeight,
	} {
		if w <= 0 {
			return fmt.Errorf("engagement.%s must be positive, got %d", name, w)
		}
	}

	if c.EventBus.Enabled {
		if !c.EventBus.EmbeddedServer && c.EventBus.URL == "" {
			return fmt.Errorf("eventbus.url is required when eventbus is enabled without an embedded server")
		}
		if c.EventBus.StreamName == "" {
			return fmt.Errorf("eventbus.stream_name must not be empty")
		}
	}

	return nil
}
