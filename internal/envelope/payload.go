// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package envelope

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// Payload is an immutable view of an event's data object. Field access uses
// gjson path syntax ("progress", "stats.bitrate", "channels.#").
//
// The zero Payload behaves like an empty object.
type Payload struct {
	raw []byte
}

func newPayload(data []byte) Payload {
	return Payload{raw: bytes.Clone(data)}
}

// PayloadFrom marshals v into a Payload. Intended for tests and for callers
// that synthesize events locally.
func PayloadFrom(v any) (Payload, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Payload{}, err
	}
	return newPayload(b), nil
}

// Get returns the value at path.
func (p Payload) Get(path string) gjson.Result {
	if len(p.raw) == 0 {
		return gjson.Result{}
	}
	return gjson.GetBytes(p.raw, path)
}

// Has reports whether path exists and is not JSON null.
func (p Payload) Has(path string) bool {
	r := p.Get(path)
	return r.Exists() && r.Type != gjson.Null
}

// String returns the value at path as a string, or "" when absent.
// Numbers are rendered in their JSON form.
func (p Payload) String(path string) string {
	r := p.Get(path)
	if !r.Exists() || r.Type == gjson.Null {
		return ""
	}
	return r.String()
}

// Float returns the numeric value at path. Numeric strings are accepted.
func (p Payload) Float(path string) (float64, bool) {
	r := p.Get(path)
	switch r.Type {
	case gjson.Number:
		return r.Num, true
	case gjson.String:
		if f, err := strconv.ParseFloat(strings.TrimSpace(r.Str), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Int returns the value at path truncated to an integer.
func (p Payload) Int(path string) (int64, bool) {
	f, ok := p.Float(path)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// Bool returns the boolean at path.
func (p Payload) Bool(path string) (bool, bool) {
	r := p.Get(path)
	switch r.Type {
	case gjson.True:
		return true, true
	case gjson.False:
		return false, true
	}
	return false, false
}

// Raw returns a copy of the underlying JSON.
func (p Payload) Raw() []byte {
	if len(p.raw) == 0 {
		return []byte("{}")
	}
	return bytes.Clone(p.raw)
}

// Decode unmarshals the payload into v.
func (p Payload) Decode(v any) error {
	return json.Unmarshal(p.Raw(), v)
}

// Map decodes the payload into a generic object. Numbers decode as float64.
func (p Payload) Map() (map[string]any, error) {
	var m map[string]any
	if err := p.Decode(&m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]any{}
	}
	return m, nil
}

// MarshalJSON emits the payload verbatim.
func (p Payload) MarshalJSON() ([]byte, error) {
	return p.Raw(), nil
}
