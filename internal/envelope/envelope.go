// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

// Package envelope decodes realtime frames into typed envelopes.
//
// Every frame the server pushes is a JSON object of the form
//
//	{"type": "update", "data": {"type": "channels_updated", ...}}
//
// where the event tag lives inside data. The one exception is the
// handshake acknowledgement sent right after the socket opens:
//
//	{"type": "connection_established", "data": {"message": "Connected"}}
//
// Decode never panics. Frames that do not fit either shape are rejected with
// one of the sentinel errors so the caller can log and count them.
package envelope

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
)

// TypeConnectionEstablished is the top-level type of the handshake ack.
const TypeConnectionEstablished = "connection_established"

var (
	// ErrMalformed is returned for frames that are not a JSON object.
	ErrMalformed = errors.New("envelope: malformed frame")

	// ErrMissingData is returned when the frame has no data object.
	ErrMissingData = errors.New("envelope: missing data object")

	// ErrMissingType is returned when an event frame has no data.type tag.
	ErrMissingType = errors.New("envelope: missing event type")
)

// Kind distinguishes dispatchable events from the handshake ack.
type Kind int

const (
	KindEvent Kind = iota
	KindConnectionEstablished
)

func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "event"
	case KindConnectionEstablished:
		return "connection_established"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Envelope is one decoded server frame.
type Envelope struct {
	Kind Kind

	// Type is the event tag taken from data.type. For the handshake ack it is
	// TypeConnectionEstablished.
	Type string

	Payload Payload
}

// Message returns the human-readable text carried by the handshake ack.
func (e Envelope) Message() string {
	return e.Payload.String("message")
}

type wireEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Decode parses raw into an Envelope.
func Decode(raw []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return Envelope{}, ErrMalformed
	}

	var w wireEnvelope
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	data := bytes.TrimSpace(w.Data)
	if len(data) == 0 || data[0] != '{' {
		return Envelope{}, ErrMissingData
	}
	payload := newPayload(data)

	if w.Type == TypeConnectionEstablished {
		return Envelope{
			Kind:    KindConnectionEstablished,
			Type:    TypeConnectionEstablished,
			Payload: payload,
		}, nil
	}

	tag := payload.Get("type")
	if !tag.Exists() || tag.Type != gjson.String || tag.Str == "" {
		return Envelope{}, ErrMissingType
	}

	return Envelope{Kind: KindEvent, Type: tag.Str, Payload: payload}, nil
}

// Encode builds an event frame in the server's wire shape. data must marshal
// to a JSON object; its "type" field is set to eventType.
func Encode(eventType string, data map[string]any) ([]byte, error) {
	body := make(map[string]any, len(data)+1)
	for k, v := range data {
		body[k] = v
	}
	body["type"] = eventType
	return json.Marshal(map[string]any{"type": "update", "data": body})
}

// Reason maps a decode error to a short metric label.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrMissingData):
		return "missing_data"
	case errors.Is(err, ErrMissingType):
		return "missing_type"
	default:
		return "malformed"
	}
}
