// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when no path is given.
var DefaultConfigPaths = []string{
	"dispatchlink.yaml",
	"dispatchlink.yml",
	"/etc/dispatchlink/config.yaml",
	"/etc/dispatchlink/config.yml",
}

// sliceConfigPaths hold lists that arrive from the environment as
// comma-separated strings.
var sliceConfigPaths = []string{
	"ops.cors_origins",
}

// envMappings maps lowercased environment variable names to koanf paths.
var envMappings = map[string]string{
	"dispatch_url":   "server.url",
	"dispatch_token": "server.token",

	"realtime_path":              "realtime.path",
	"realtime_initial_delay":     "realtime.initial_delay",
	"realtime_max_delay":         "realtime.max_delay",
	"realtime_multiplier":        "realtime.multiplier",
	"realtime_max_attempts":      "realtime.max_attempts",
	"realtime_handshake_timeout": "realtime.handshake_timeout",
	"realtime_ping_interval":     "realtime.ping_interval",
	"realtime_pong_wait":         "realtime.pong_wait",
	"realtime_write_timeout":     "realtime.write_timeout",
	"realtime_read_limit":        "realtime.read_limit",

	"notifications_auto_close": "notifications.auto_close",

	"api_timeout":    "api.timeout",
	"api_rate_limit": "api.rate_limit",
	"api_burst":      "api.burst",

	"ops_enabled":      "ops.enabled",
	"ops_listen":       "ops.listen",
	"ops_cors_origins": "ops.cors_origins",
	"ops_rate_limit":   "ops.rate_limit",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// Load builds the configuration from defaults, the YAML file at path (or
// the first one found when path is empty) and the environment, then
// validates it. An explicit path must exist.
func Load(path string) (*Config, error) {
	k, err := LoadKoanf(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadKoanf returns the merged, unvalidated koanf tree.
func LoadKoanf(path string) (*koanf.Koanf, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath, err := resolveConfigFile(path)
	if err != nil {
		return nil, err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}
	return k, nil
}

// resolveConfigFile returns the file to load, or "" for none.
func resolveConfigFile(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		return path, nil
	}

	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("config file: %w", err)
		}
	}

	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped names return "" and are skipped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
