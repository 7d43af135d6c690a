// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/dispatchlink/internal/validation"
)

// Validate checks struct constraints, then the rules that span fields.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if err := validateServerURL(c.Server.URL); err != nil {
		return err
	}
	for _, origin := range c.Ops.CORSOrigins {
		if err := validateOrigin(origin); err != nil {
			return err
		}
	}
	return nil
}

// validateServerURL rejects query strings and fragments; the realtime path
// and API routes are appended to the URL path.
func validateServerURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("server.url: %w", err)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("server.url must not carry a query or fragment: %s", raw)
	}
	if u.User != nil {
		return fmt.Errorf("server.url must not embed credentials, use server.token")
	}
	return nil
}

func validateOrigin(origin string) error {
	if origin == "*" {
		return nil
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("ops.cors_origins: invalid origin %q", origin)
	}
	if strings.TrimSuffix(u.Path, "/") != "" {
		return fmt.Errorf("ops.cors_origins: origin %q must not have a path", origin)
	}
	return nil
}
