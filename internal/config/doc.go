// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

/*
Package config loads Dispatchlink configuration.

# Configuration Sources

Sources are layered with koanf, later layers winning:

 1. Struct defaults (defaultConfig)
 2. Optional YAML file: the explicit path, else CONFIG_PATH, else the first of
    DefaultConfigPaths that exists
 3. Environment variables listed in envMappings

Unknown environment variables are ignored.

# Environment Variables

Server:
  - DISPATCH_URL: server root, http(s) or ws(s) (required)
  - DISPATCH_TOKEN: bearer access token

Realtime:
  - REALTIME_PATH: socket path (default: /ws/)
  - REALTIME_INITIAL_DELAY: first reconnect delay (default: 1s)
  - REALTIME_MAX_DELAY: reconnect delay cap (default: 30s)
  - REALTIME_MULTIPLIER: backoff growth factor (default: 1.5)
  - REALTIME_MAX_ATTEMPTS: closes tolerated before giving up (default: 5)
  - REALTIME_HANDSHAKE_TIMEOUT (default: 10s)
  - REALTIME_PING_INTERVAL (default: 30s)
  - REALTIME_PONG_WAIT (default: 60s)
  - REALTIME_WRITE_TIMEOUT (default: 10s)
  - REALTIME_READ_LIMIT: max frame bytes (default: 1 MiB)

Notifications:
  - NOTIFICATIONS_AUTO_CLOSE: terminal toast lifetime (default: 5s)

REST API:
  - API_TIMEOUT (default: 30s)
  - API_RATE_LIMIT: requests per second (default: 5)
  - API_BURST (default: 10)

Operator HTTP surface:
  - OPS_ENABLED (default: false)
  - OPS_LISTEN (default: 127.0.0.1:9464)
  - OPS_CORS_ORIGINS: comma-separated origins
  - OPS_RATE_LIMIT: requests per minute per IP, 0 disables (default: 60)

Logging:
  - LOG_LEVEL (default: info)
  - LOG_FORMAT: json or console (default: json)
  - LOG_CALLER (default: false)

# Usage Example

	cfg, err := config.Load("")
	if err != nil {
	    return fmt.Errorf("load config: %w", err)
	}
	fmt.Println(cfg.Server.URL)
*/
package config
