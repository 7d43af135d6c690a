// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package logging

import (
	"strings"
	"testing"
)

func TestSanitizeToken(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"short", "abc", "***"},
		{"twelve", "abcdefghijkl", "***"},
		{"long", "eyJhbGciOiJIUzI1NiJ9.e30.abcd", "eyJh...abcd"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeToken(tt.input); got != tt.want {
				t.Errorf("SanitizeToken(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitizeURL(t *testing.T) {
	t.Parallel()

	got := SanitizeURL("wss://tv.example.com/ws/?token=eyJhbGciOiJIUzI1NiJ9.e30.abcd")
	if strings.Contains(got, "e30") {
		t.Errorf("token leaked: %s", got)
	}
	if !strings.HasPrefix(got, "wss://tv.example.com/ws/?token=eyJh...abcd") {
		t.Errorf("SanitizeURL = %s", got)
	}

	if got := SanitizeURL("ws://host/ws/"); got != "ws://host/ws/" {
		t.Errorf("SanitizeURL without token = %s", got)
	}
	if got := SanitizeURL("ws://user:secret@host/ws/"); strings.Contains(got, "secret") {
		t.Errorf("password leaked: %s", got)
	}
	if got := SanitizeURL("://bad"); got != "<invalid url>" {
		t.Errorf("SanitizeURL(invalid) = %s", got)
	}
}
