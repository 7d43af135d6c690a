// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

// Package transport implements the realtime socket on gorilla/websocket.
//
// The server endpoint is
//
//	ws(s)://{host}/ws/?token={bearer}
//
// derived from the configured http(s) base URL. Each Conn runs a ping loop;
// a missing pong within PongWait fails the next read, which the connection
// manager treats as a close.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/dispatchlink/internal/connection"
	"github.com/tomtom215/dispatchlink/internal/logging"
)

var (
	// ErrEmptyToken is returned when dialing without a credential.
	ErrEmptyToken = errors.New("transport: empty token")

	// ErrUnauthorized is returned when the server rejects the handshake
	// with 401 or 403. It also matches connection.ErrCredentialRejected.
	ErrUnauthorized = errors.New("transport: handshake rejected")
)

// Config holds socket settings.
type Config struct {
	// BaseURL is the server root, http(s):// or ws(s)://.
	BaseURL string

	// Path of the realtime endpoint. Default: /ws/
	Path string

	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PongWait         time.Duration
	WriteTimeout     time.Duration

	// ReadLimit caps the size of one inbound frame in bytes.
	ReadLimit int64

	EnableCompression bool
}

// DefaultConfig returns production socket settings for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		Path:             "/ws/",
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PongWait:         60 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadLimit:        1 << 20,
	}
}

// Dialer opens realtime sockets. It satisfies connection.Dialer.
type Dialer struct {
	cfg  Config
	base *url.URL
	ws   *websocket.Dialer
}

// NewDialer validates cfg and returns a Dialer.
func NewDialer(cfg Config) (*Dialer, error) {
	def := DefaultConfig(cfg.BaseURL)
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongWait <= cfg.PingInterval {
		cfg.PongWait = 2 * cfg.PingInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = def.ReadLimit
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch base.Scheme {
	case "http", "ws":
		base.Scheme = "ws"
	case "https", "wss":
		base.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported base url scheme %q", base.Scheme)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", cfg.BaseURL)
	}

	return &Dialer{
		cfg:  cfg,
		base: base,
		ws: &websocket.Dialer{
			Proxy:             http.ProxyFromEnvironment,
			HandshakeTimeout:  cfg.HandshakeTimeout,
			EnableCompression: cfg.EnableCompression,
		},
	}, nil
}

// URL returns the endpoint for token.
func (d *Dialer) URL(token string) string {
	u := *d.base
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(d.cfg.Path, "/")
	u.RawQuery = url.Values{"token": []string{token}}.Encode()
	u.Fragment = ""
	return u.String()
}

// Dial opens a socket authenticated with token.
func (d *Dialer) Dial(ctx context.Context, token string) (connection.Conn, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}
	endpoint := d.URL(token)

	ws, resp, err := d.ws.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return nil, fmt.Errorf("%w (HTTP %d): %w", ErrUnauthorized, resp.StatusCode, connection.ErrCredentialRejected)
			}
			return nil, fmt.Errorf("websocket dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	logging.Debug().Str("component", "transport").Str("url", logging.SanitizeURL(endpoint)).
		Msg("Realtime socket opened")
	return newConn(ws, d.cfg), nil
}

// Conn wraps a gorilla connection with keepalive and serialized writes.
type Conn struct {
	ws  *websocket.Conn
	cfg Config

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, cfg Config) *Conn {
	c := &Conn{ws: ws, cfg: cfg, done: make(chan struct{})}

	ws.SetReadLimit(cfg.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	go c.pingLoop()
	return c
}

// ReadMessage returns the next data frame. Control frames are handled
// internally.
func (c *Conn) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// WriteMessage sends a text frame.
func (c *Conn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close sends a normal closure frame and closes the socket. Safe to call
// more than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.ws.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout))
			c.writeMu.Unlock()
			if err != nil {
				logging.Debug().Str("component", "transport").Err(err).Msg("Realtime ping failed")
				_ = c.ws.Close()
				return
			}
		}
	}
}
