// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package envelope

import (
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		wantErr  error
		wantKind Kind
		wantType string
	}{
		{
			name:     "event",
			raw:      `{"type":"update","data":{"type":"channels_updated"}}`,
			wantKind: KindEvent,
			wantType: "channels_updated",
		},
		{
			name:     "event without top-level type",
			raw:      `{"data":{"type":"m3u_refresh","account":4,"progress":50}}`,
			wantKind: KindEvent,
			wantType: "m3u_refresh",
		},
		{
			name:     "handshake ack",
			raw:      `{"type":"connection_established","data":{"message":"Connected"}}`,
			wantKind: KindConnectionEstablished,
			wantType: TypeConnectionEstablished,
		},
		{
			name:     "surrounding whitespace",
			raw:      "\n  {\"data\":{\"type\":\"logos_updated\"}}  \n",
			wantKind: KindEvent,
			wantType: "logos_updated",
		},
		{name: "empty", raw: ``, wantErr: ErrMalformed},
		{name: "truncated", raw: `{"data":{"type":"x"`, wantErr: ErrMalformed},
		{name: "array", raw: `[1,2,3]`, wantErr: ErrMalformed},
		{name: "string", raw: `"hello"`, wantErr: ErrMalformed},
		{name: "non-string top-level type", raw: `{"type":5,"data":{"type":"x"}}`, wantErr: ErrMalformed},
		{name: "no data", raw: `{"type":"update"}`, wantErr: ErrMissingData},
		{name: "null data", raw: `{"data":null}`, wantErr: ErrMissingData},
		{name: "array data", raw: `{"data":[{"type":"x"}]}`, wantErr: ErrMissingData},
		{name: "ack without data", raw: `{"type":"connection_established"}`, wantErr: ErrMissingData},
		{name: "no event type", raw: `{"data":{"progress":10}}`, wantErr: ErrMissingType},
		{name: "empty event type", raw: `{"data":{"type":""}}`, wantErr: ErrMissingType},
		{name: "numeric event type", raw: `{"data":{"type":42}}`, wantErr: ErrMissingType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			env, err := Decode([]byte(tt.raw))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Decode() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode() unexpected error: %v", err)
			}
			if env.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", env.Kind, tt.wantKind)
			}
			if env.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", env.Type, tt.wantType)
			}
		})
	}
}

func TestDecodeAckMessage(t *testing.T) {
	t.Parallel()

	env, err := Decode([]byte(`{"type":"connection_established","data":{"message":"Connected to dispatch"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if got := env.Message(); got != "Connected to dispatch" {
		t.Errorf("Message() = %q", got)
	}
}

func TestDecodeCopiesPayload(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"data":{"type":"stream_stats","stream_id":9}}`)
	env, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	for i := range raw {
		raw[i] = ' '
	}
	if got := env.Payload.String("stream_id"); got != "9" {
		t.Errorf("payload aliased the input buffer, stream_id = %q", got)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	t.Parallel()

	raw, err := Encode("epg_refresh", map[string]any{"source": 2, "progress": 100})
	if err != nil {
		t.Fatal(err)
	}
	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode(Encode()) error: %v", err)
	}
	if env.Type != "epg_refresh" {
		t.Errorf("Type = %q", env.Type)
	}
	if v, ok := env.Payload.Int("progress"); !ok || v != 100 {
		t.Errorf("progress = %d, %v", v, ok)
	}
}

func TestReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{ErrMalformed, "malformed"},
		{ErrMissingData, "missing_data"},
		{ErrMissingType, "missing_type"},
		{errors.New("other"), "malformed"},
	}
	for _, tt := range tests {
		if got := Reason(tt.err); got != tt.want {
			t.Errorf("Reason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func FuzzDecode(f *testing.F) {
	f.Add([]byte(`{"type":"update","data":{"type":"channels_updated"}}`))
	f.Add([]byte(`{"type":"connection_established","data":{"message":"hi"}}`))
	f.Add([]byte(`{"data":null}`))
	f.Add([]byte(`[]`))

	f.Fuzz(func(t *testing.T, raw []byte) {
		env, err := Decode(raw)
		if err == nil && env.Kind == KindEvent && env.Type == "" {
			t.Errorf("event decoded without a type: %q", raw)
		}
	})
}
