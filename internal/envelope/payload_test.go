// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package envelope

import (
	"testing"
)

func testPayload(t *testing.T, v any) Payload {
	t.Helper()
	p, err := PayloadFrom(v)
	if err != nil {
		t.Fatalf("PayloadFrom: %v", err)
	}
	return p
}

func TestPayloadAccessors(t *testing.T) {
	t.Parallel()

	p := testPayload(t, map[string]any{
		"account":   7,
		"progress":  "42.5",
		"status":    "parsing",
		"enabled":   true,
		"nothing":   nil,
		"stats":     map[string]any{"bitrate": 4500},
		"processed": 10,
	})

	if got := p.String("status"); got != "parsing" {
		t.Errorf("String(status) = %q", got)
	}
	if got := p.String("account"); got != "7" {
		t.Errorf("String(account) = %q", got)
	}
	if got := p.String("nothing"); got != "" {
		t.Errorf("String(nothing) = %q", got)
	}
	if got, ok := p.Float("progress"); !ok || got != 42.5 {
		t.Errorf("Float(progress) = %v, %v", got, ok)
	}
	if got, ok := p.Int("stats.bitrate"); !ok || got != 4500 {
		t.Errorf("Int(stats.bitrate) = %v, %v", got, ok)
	}
	if _, ok := p.Float("status"); ok {
		t.Error("Float(status) should fail on non-numeric string")
	}
	if got, ok := p.Bool("enabled"); !ok || !got {
		t.Errorf("Bool(enabled) = %v, %v", got, ok)
	}
	if !p.Has("account") || p.Has("nothing") || p.Has("missing") {
		t.Error("Has() mismatch")
	}
}

func TestZeroPayload(t *testing.T) {
	t.Parallel()

	var p Payload
	if p.Has("x") {
		t.Error("zero payload Has(x) = true")
	}
	if got := string(p.Raw()); got != "{}" {
		t.Errorf("zero payload Raw() = %q", got)
	}
	m, err := p.Map()
	if err != nil || len(m) != 0 {
		t.Errorf("zero payload Map() = %v, %v", m, err)
	}
}

func TestPayloadRawIsCopy(t *testing.T) {
	t.Parallel()

	p := testPayload(t, map[string]any{"a": 1})
	b := p.Raw()
	b[0] = 'X'
	if p.Raw()[0] != '{' {
		t.Error("Raw() exposed internal buffer")
	}
}

func TestPayloadDecode(t *testing.T) {
	t.Parallel()

	p := testPayload(t, map[string]any{"processed": 3, "total": 12})

	var v struct {
		Processed int `json:"processed"`
		Total     int `json:"total"`
	}
	if err := p.Decode(&v); err != nil {
		t.Fatal(err)
	}
	if v.Processed != 3 || v.Total != 12 {
		t.Errorf("Decode() = %+v", v)
	}

	m, err := p.Map()
	if err != nil {
		t.Fatal(err)
	}
	if m["total"] != float64(12) {
		t.Errorf("Map()[total] = %v (%T)", m["total"], m["total"])
	}
}
