// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package commands

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/goccy/go-json"

	"github.com/tomtom215/dispatchlink/internal/envelope"
	"github.com/tomtom215/dispatchlink/internal/eventtap"
	"github.com/tomtom215/dispatchlink/internal/notify"
)

func init() {
	color.NoColor = true
}

func newTestConsole(jsonLines bool) (*Console, *bytes.Buffer) {
	var buf bytes.Buffer
	c := NewConsole(&buf, jsonLines)
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC) }
	return c, &buf
}

func lines(buf *bytes.Buffer) []string {
	out := strings.TrimSpace(buf.String())
	if out == "" {
		return nil
	}
	return strings.Split(out, "\n")
}

func TestConsoleToasts(t *testing.T) {
	t.Parallel()

	c, buf := newTestConsole(false)
	c.Emit(notify.Success("Playlist created", "Sports was added"))
	c.Emit(notify.ToastSpec{Key: "epg_refresh:7", Level: notify.LevelInfo, Title: "EPG refresh", Message: "40%", Loading: true, Persistent: true})
	c.Update("epg_refresh:7", notify.ToastSpec{Level: notify.LevelInfo, Title: "EPG refresh", Message: "40%", Loading: true, Persistent: true})
	c.Update("epg_refresh:7", notify.ToastSpec{Level: notify.LevelSuccess, Title: "EPG refresh", Message: "Done"})
	c.Update("unknown", notify.Info("ignored", ""))

	got := lines(buf)
	want := []string{
		"12:30:00 ✔ Playlist created Sports was added",
		"12:30:00 … EPG refresh 40%",
		"12:30:00 ✔ EPG refresh Done",
	}
	if len(got) != len(want) {
		t.Fatalf("lines = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestConsoleDismiss(t *testing.T) {
	t.Parallel()

	c, buf := newTestConsole(false)
	c.Emit(notify.ToastSpec{Key: "connection-failed", Level: notify.LevelError, Title: "Live updates unavailable", Persistent: true})
	c.Dismiss("connection-failed")
	c.Dismiss("connection-failed")

	got := lines(buf)
	if len(got) != 2 {
		t.Fatalf("lines = %q", got)
	}
	if !strings.Contains(got[0], "POST /retry") {
		t.Errorf("terminal toast lacks retry hint: %q", got[0])
	}
	if !strings.HasSuffix(got[1], "Live updates unavailable dismissed") {
		t.Errorf("dismiss line = %q", got[1])
	}
}

func TestConsoleJSON(t *testing.T) {
	t.Parallel()

	c, buf := newTestConsole(true)
	c.Emit(notify.Warning("Session expired", "Sign in again."))

	raw, _ := envelope.Encode("logos_updated", map[string]any{"count": 3})
	env, err := envelope.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	c.Event(eventtap.Event{Type: env.Type, CorrelationID: "abcd1234", Payload: env.Payload}, "refresh")

	got := lines(buf)
	if len(got) != 2 {
		t.Fatalf("lines = %q", got)
	}

	var toast map[string]any
	if err := json.Unmarshal([]byte(got[0]), &toast); err != nil {
		t.Fatal(err)
	}
	if toast["kind"] != "toast" || toast["level"] != "warning" || toast["title"] != "Session expired" {
		t.Errorf("toast = %v", toast)
	}

	var ev struct {
		Kind     string         `json:"kind"`
		Type     string         `json:"type"`
		Category string         `json:"category"`
		Payload  map[string]any `json:"payload"`
	}
	if err := json.Unmarshal([]byte(got[1]), &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Kind != "event" || ev.Type != "logos_updated" || ev.Category != "refresh" || ev.Payload["count"] != float64(3) {
		t.Errorf("event = %+v", ev)
	}
}
