// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces all Fanbeam environment variables.
const envPrefix = "FANBEAM_"

// DefaultConfigPaths are checked in order when FANBEAM_CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"fanbeam.yaml",
	"config/fanbeam.yaml",
	"/etc/fanbeam/fanbeam.yaml",
}

// defaultConfig returns the built-in defaults, which the file and environment
// layers override.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8860,
			Timeout:           30 * time.Second,
			RateLimitRequests: 100,
			RateLimitWindow:   time.Minute,
		},
		Database: DatabaseConfig{
			Path:         "data/fanbeam.db",
			MaxMemory:    "2GB",
			Threads:      0,
			QueryTimeout: 30 * time.Second,
		},
		Engagement: EngagementConfig{
			ListenWeight:   2,
			SocialWeight:   3,
			TipWeight:      10,
			OtherWeight:    1,
			BaselineWeight: 1,

			IntentHighVisits:   5,
			IntentHighRecent:   3,
			IntentMediumVisits: 2,
			IntentMediumRecent: 2,
		},
		EventBus: EventBusConfig{
			Enabled:         true,
			EmbeddedServer:  true,
			StoreDir:        "data/jetstream",
			Port:            4222,
			StreamName:      "FANBEAM_INTERACTIONS",
			SubjectPrefix:   "interactions",
			MaxAge:          24 * time.Hour,
			DuplicateWindow: 2 * time.Minute,

			MaxReconnects: 10,
			ReconnectWait: 2 * time.Second,

			BreakerFailureThreshold: 5,
			BreakerTimeout:          30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// FANBEAM_-prefixed environment variables, then validates the result.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom is Load with an explicit config file path. An empty path skips the
// file layer.
func LoadFrom(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file, preferring an
// explicit FANBEAM_CONFIG_PATH. Returns "" when no file is found, which is
// fine: defaults plus environment variables are a complete configuration.
func findConfigFile() string {
	if path := os.Getenv(envPrefix + "CONFIG_PATH"); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envTransform maps FANBEAM_SERVER_PORT to "server.port",
// FANBEAM_ENGAGEMENT_TIP_WEIGHT to "engagement.tip_weight", and so on. The
// first underscore after the prefix separates the section from the key; keys
// themselves keep their underscores.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))
	if key == "config_path" {
		// Consumed by findConfigFile, not a config key.
		return ""
	}
	parts := strings.SplitN(key, "_", 2)
	if len(parts) != 2 {
		return key
	}
	return parts[0] + "." + parts[1]
}
