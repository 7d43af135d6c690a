// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package logging

import "net/url"

// SanitizeToken masks a bearer token, keeping the first and last 4 characters.
// Example: "eyJhbGciOiJIUzI1NiJ9.e30.abcd" -> "eyJh...abcd"
func SanitizeToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 12 {
		return "***"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

// SanitizeURL masks the token query parameter of a realtime endpoint URL so
// it can be logged. Unparseable input is replaced entirely.
func SanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	q := u.Query()
	if tok := q.Get("token"); tok != "" {
		q.Set("token", SanitizeToken(tok))
		u.RawQuery = q.Encode()
	}
	if u.User != nil {
		u.User = url.User(u.User.Username())
	}
	return u.String()
}
