// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/tomtom215/dispatchlink/internal/logging"
	"github.com/tomtom215/dispatchlink/internal/metrics"
	"github.com/tomtom215/dispatchlink/internal/models"
)

const (
	maxPages      = 100
	maxRetries    = 3
	maxErrorBody  = 512
	baseRetryWait = time.Second
)

// Config holds REST client settings.
type Config struct {
	BaseURL string
	Token   string

	// Timeout bounds one HTTP request. Default: 30s
	Timeout time.Duration

	// RateLimit is the sustained request rate per second. Default: 5
	RateLimit float64

	// Burst is the limiter bucket size. Default: 10
	Burst int
}

// Client lists server collections. It implements store.Fetcher.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	breaker *breaker

	mu    sync.RWMutex
	token string
}

// NewClient validates cfg and creates a Client.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported base url scheme %q", base.Scheme)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base url %q has no host", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}

	return &Client{
		base:    base,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		breaker: newBreaker("dispatch-api"),
		token:   cfg.Token,
	}, nil
}

// SetToken replaces the bearer token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// List fetches every entity of kind, following pagination.
func (c *Client) List(ctx context.Context, kind models.ResourceKind) ([]models.Entity, error) {
	endpoint := kind.Endpoint()
	if endpoint == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}

	next, err := c.resolve(endpoint)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	var out []models.Entity
	for page := 0; next != ""; page++ {
		if page >= maxPages {
			return nil, fmt.Errorf("%w: %s", ErrTooManyPages, kind)
		}

		body, err := c.breaker.execute(func() ([]byte, error) {
			return c.get(ctx, kind.String(), next)
		})
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", kind, err)
		}

		items, nextURL, err := decodeList(body)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		for _, item := range items {
			if e, ok := models.EntityFromMap(kind, item); ok {
				out = append(out, e)
			}
		}
		next = ""
		if nextURL != "" {
			if next, err = c.resolve(nextURL); err != nil {
				return nil, fmt.Errorf("list %s: %w", kind, err)
			}
		}
	}

	logging.Debug().Str("component", "api").Str("kind", kind.String()).Int("entities", len(out)).
		Msg("Listed collection")
	return out, nil
}

// resolve makes ref absolute against the base URL. The bearer token is
// sent with every request, so links to another scheme or host are refused.
func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse page link: %w", err)
	}
	abs := c.base.ResolveReference(u)
	if abs.Scheme != c.base.Scheme || abs.Host != c.base.Host || abs.User != nil {
		return "", fmt.Errorf("%w: %s://%s", ErrForeignPage, abs.Scheme, abs.Host)
	}
	return abs.String(), nil
}

// get performs one rate-limited GET, retrying 429 responses with the
// server's Retry-After hint.
func (c *Client) get(ctx context.Context, endpoint, target string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if tok := c.bearer(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			metrics.RecordAPIRequest(endpoint, "error", time.Since(start))
			return nil, fmt.Errorf("execute request: %w", err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		metrics.RecordAPIRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if attempt >= maxRetries {
				return nil, ErrRateLimited
			}
			wait := retryAfter(resp.Header.Get("Retry-After"), baseRetryWait*(1<<attempt))
			logging.Warn().Str("component", "api").Dur("retry_delay", wait).Int("attempt", attempt+1).
				Msg("API rate limited (HTTP 429), retrying")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			continue
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, fmt.Errorf("%w (HTTP %d)", ErrUnauthorized, resp.StatusCode)
		case resp.StatusCode < 200 || resp.StatusCode > 299:
			return nil, &StatusError{Code: resp.StatusCode, Body: truncate(body)}
		}
		if readErr != nil {
			return nil, fmt.Errorf("read body: %w", readErr)
		}
		return body, nil
	}
}

// decodeList accepts a bare JSON array or a paginated object
// {"count": n, "next": url|null, "results": [...]}.
func decodeList(body []byte) ([]map[string]any, string, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, "", errors.New("empty body")
	}

	if trimmed[0] == '[' {
		var items []map[string]any
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, "", err
		}
		return items, "", nil
	}

	var page struct {
		Next    *string          `json:"next"`
		Results []map[string]any `json:"results"`
	}
	if err := json.Unmarshal(trimmed, &page); err != nil {
		return nil, "", err
	}
	next := ""
	if page.Next != nil {
		next = *page.Next
	}
	return page.Results, next, nil
}

func retryAfter(header string, fallback time.Duration) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody]
	}
	return s
}

// BreakerState reports the circuit breaker state: closed, half-open or open.
func (c *Client) BreakerState() string {
	return c.breaker.State()
}
