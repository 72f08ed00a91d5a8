// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fanbeam/fanbeam/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom(\"\") returned error: %v", err)
	}

	if cfg.Server.Port != 8860 {
		t.Errorf("expected default port 8860, got %d", cfg.Server.Port)
	}
	if cfg.Database.QueryTimeout != 30*time.Second {
		t.Errorf("expected default query timeout 30s, got %s", cfg.Database.QueryTimeout)
	}
	if cfg.Engagement.TipWeight != 10 {
		t.Errorf("expected default tip weight 10, got %d", cfg.Engagement.TipWeight)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected default log level info, got %s", cfg.Logging.Level)
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fanbeam.yaml")
	content := `
server:
  port: 9000
engagement:
  tip_weight: 25
database:
  path: ":memory:"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom returned error: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected file port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Engagement.TipWeight != 25 {
		t.Errorf("expected file tip weight 25, got %d", cfg.Engagement.TipWeight)
	}
	if cfg.Database.Path != ":memory:" {
		t.Errorf("expected file database path :memory:, got %s", cfg.Database.Path)
	}
	// Untouched keys keep their defaults.
	if cfg.Engagement.ListenWeight != 2 {
		t.Errorf("expected default listen weight 2, got %d", cfg.Engagement.ListenWeight)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fanbeam.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("FANBEAM_SERVER_PORT", "9100")
	t.Setenv("FANBEAM_ENGAGEMENT_BASELINE_WEIGHT", "4")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom returned error: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("expected env port 9100 to win over file, got %d", cfg.Server.Port)
	}
	if cfg.Engagement.BaselineWeight != 4 {
		t.Errorf("expected env baseline weight 4, got %d", cfg.Engagement.BaselineWeight)
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"FANBEAM_SERVER_PORT", "server.port"},
		{"FANBEAM_ENGAGEMENT_TIP_WEIGHT", "engagement.tip_weight"},
		{"FANBEAM_EVENTBUS_STREAM_NAME", "eventbus.stream_name"},
		{"FANBEAM_CONFIG_PATH", ""},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too low", func(c *Config) { c.Server.Port = 0 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"empty database path", func(c *Config) { c.Database.Path = "" }},
		{"zero query timeout", func(c *Config) { c.Database.QueryTimeout = 0 }},
		{"non-positive weight", func(c *Config) { c.Engagement.TipWeight = 0 }},
		{"negative baseline", func(c *Config) { c.Engagement.BaselineWeight = -1 }},
		{"eventbus without url", func(c *Config) {
			c.EventBus.Enabled = true
			c.EventBus.EmbeddedServer = false
			c.EventBus.URL = ""
		}},
		{"eventbus without stream name", func(c *Config) {
			c.EventBus.Enabled = true
			c.EventBus.StreamName = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestAccumulatorConversion(t *testing.T) {
	cfg := defaultConfig()
	acc := cfg.Engagement.Accumulator()

	if got := acc.Weight(models.ActionTip); got != 10 {
		t.Errorf("expected tip weight 10, got %d", got)
	}
	if got := acc.Weight(models.ActionType("unknown")); got != 1 {
		t.Errorf("expected baseline weight 1 for unknown action, got %d", got)
	}
	if acc.Intent.HighVisits != 5 || acc.Intent.HighRecent != 3 {
		t.Errorf("unexpected intent thresholds: %+v", acc.Intent)
	}
}
