// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package config

import "time"

// Config is the complete client configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Realtime      RealtimeConfig      `koanf:"realtime"`
	Notifications NotificationsConfig `koanf:"notifications"`
	API           APIConfig           `koanf:"api"`
	Ops           OpsConfig           `koanf:"ops"`
	Logging       LoggingConfig       `koanf:"logging"`
}

// ServerConfig identifies the admin server.
type ServerConfig struct {
	URL   string `koanf:"url" validate:"required,endpoint"`
	Token string `koanf:"token"`
}

// RealtimeConfig tunes the realtime socket and its reconnect schedule.
type RealtimeConfig struct {
	Path             string        `koanf:"path" validate:"required,startswith=/"`
	InitialDelay     time.Duration `koanf:"initial_delay" validate:"gt=0"`
	MaxDelay         time.Duration `koanf:"max_delay" validate:"gtefield=InitialDelay"`
	Multiplier       float64       `koanf:"multiplier" validate:"gte=1"`
	MaxAttempts      int           `koanf:"max_attempts" validate:"min=1"`
	HandshakeTimeout time.Duration `koanf:"handshake_timeout" validate:"gt=0"`
	PingInterval     time.Duration `koanf:"ping_interval" validate:"gt=0"`
	PongWait         time.Duration `koanf:"pong_wait" validate:"gtfield=PingInterval"`
	WriteTimeout     time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ReadLimit        int64         `koanf:"read_limit" validate:"min=1024"`
}

// NotificationsConfig tunes the progress correlator.
type NotificationsConfig struct {
	AutoClose time.Duration `koanf:"auto_close" validate:"gte=0"`
}

// APIConfig tunes the REST client used for refetches.
type APIConfig struct {
	Timeout   time.Duration `koanf:"timeout" validate:"gt=0"`
	RateLimit float64       `koanf:"rate_limit" validate:"gt=0"`
	Burst     int           `koanf:"burst" validate:"min=1"`
}

// OpsConfig controls the operator HTTP surface.
type OpsConfig struct {
	Enabled     bool     `koanf:"enabled"`
	Listen      string   `koanf:"listen" validate:"required,hostname_port"`
	CORSOrigins []string `koanf:"cors_origins"`
	RateLimit   int      `koanf:"rate_limit" validate:"gte=0"`
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"loglevel"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns the values applied before any file or environment
// source.
func defaultConfig() *Config {
	return &Config{
		Realtime: RealtimeConfig{
			Path:             "/ws/",
			InitialDelay:     time.Second,
			MaxDelay:         30 * time.Second,
			Multiplier:       1.5,
			MaxAttempts:      5,
			HandshakeTimeout: 10 * time.Second,
			PingInterval:     30 * time.Second,
			PongWait:         60 * time.Second,
			WriteTimeout:     10 * time.Second,
			ReadLimit:        1 << 20,
		},
		Notifications: NotificationsConfig{
			AutoClose: 5 * time.Second,
		},
		API: APIConfig{
			Timeout:   30 * time.Second,
			RateLimit: 5,
			Burst:     10,
		},
		Ops: OpsConfig{
			Listen:    "127.0.0.1:9464",
			RateLimit: 60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
