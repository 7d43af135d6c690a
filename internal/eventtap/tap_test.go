// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package eventtap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tomtom215/dispatchlink/internal/envelope"
	"github.com/tomtom215/dispatchlink/internal/logging"
)

func decode(t *testing.T, eventType string, data map[string]any) envelope.Envelope {
	t.Helper()
	raw, err := envelope.Encode(eventType, data)
	if err != nil {
		t.Fatal(err)
	}
	env, err := envelope.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	return env
}

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("tap channel closed")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func TestPublishSubscribe(t *testing.T) {
	t.Parallel()

	tap := New(Config{})
	defer tap.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := tap.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe() = %v", err)
	}

	pctx := logging.ContextWithCorrelationID(context.Background(), "abcd1234")
	if err := tap.Publish(pctx, decode(t, "channel_stats", map[string]any{"channel_id": 4, "viewers": 2})); err != nil {
		t.Fatalf("Publish() = %v", err)
	}

	ev := receive(t, events)
	if ev.Type != "channel_stats" {
		t.Errorf("Type = %q", ev.Type)
	}
	if ev.CorrelationID != "abcd1234" {
		t.Errorf("CorrelationID = %q", ev.CorrelationID)
	}
	if n, ok := ev.Payload.Int("viewers"); !ok || n != 2 {
		t.Errorf("viewers = %v, %v", n, ok)
	}
	if ev.ID == "" {
		t.Error("event has no id")
	}
}

func TestPublishOrder(t *testing.T) {
	t.Parallel()

	tap := New(Config{})
	defer tap.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := tap.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}

	var types []string
	for range 20 {
		types = append(types, "channels_updated", "logos_updated", "epg_match")
	}
	for _, typ := range types {
		if err := tap.Publish(context.Background(), decode(t, typ, nil)); err != nil {
			t.Fatal(err)
		}
	}
	for i, want := range types {
		if got := receive(t, events).Type; got != want {
			t.Fatalf("event %d: got %q, want %q", i, got, want)
		}
	}
}

func TestPublishLaggingSubscriber(t *testing.T) {
	t.Parallel()

	tap := New(Config{Buffer: 2})
	defer tap.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := tap.Subscribe(ctx)
	if err != nil {
		t.Fatal(err)
	}

	env := decode(t, "streams_updated", nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 50 {
			_ = tap.Publish(context.Background(), env)
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a subscriber that never reads")
	}
	if got := receive(t, events).Type; got != "streams_updated" {
		t.Errorf("got %q", got)
	}
}

func TestPublishWithoutSubscribers(t *testing.T) {
	t.Parallel()

	tap := New(Config{})
	defer tap.Close()
	if err := tap.Publish(context.Background(), decode(t, "streams_updated", nil)); err != nil {
		t.Errorf("Publish() with no subscribers = %v", err)
	}
}

func TestClose(t *testing.T) {
	t.Parallel()

	tap := New(Config{})
	events, err := tap.Subscribe(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := tap.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}
	if err := tap.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Error("received event after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber channel not closed")
	}

	if err := tap.Publish(context.Background(), decode(t, "logos_updated", nil)); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish() after Close = %v", err)
	}
	if _, err := tap.Subscribe(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Subscribe() after Close = %v", err)
	}
}
