// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

// Package eventtap republishes dispatched envelopes on an in-process
// watermill channel so debugging tools can observe the live event stream.
//
// Subscribers see events in publish order. Publish waits only until each
// subscriber has taken the event off the channel, never for the consumer of
// Subscribe, and nothing is kept for late subscribers. A subscriber that
// falls behind loses events.
package eventtap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/tomtom215/dispatchlink/internal/envelope"
	"github.com/tomtom215/dispatchlink/internal/logging"
	"github.com/tomtom215/dispatchlink/internal/metrics"
)

// Topic carries every dispatched envelope.
const Topic = "realtime.events"

const (
	metaEventType     = "event_type"
	metaCorrelationID = "correlation_id"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("eventtap: closed")

// Config sizes the tap's buffers.
type Config struct {
	// Buffer is the per-subscriber channel capacity. Default: 256
	Buffer int
}

// Event is one envelope observed on the tap.
type Event struct {
	ID            string
	Type          string
	CorrelationID string
	Payload       envelope.Payload
}

// Tap publishes envelopes to subscribers. It implements router.Tap.
type Tap struct {
	pubsub *gochannel.GoChannel
	buffer int

	mu     sync.RWMutex
	closed bool
}

// New creates a Tap.
func New(cfg Config) *Tap {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	return &Tap{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer:            int64(cfg.Buffer),
				Persistent:                     false,
				BlockPublishUntilSubscriberAck: true,
			},
			newLoggerAdapter(),
		),
		buffer: cfg.Buffer,
	}
}

type wireFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Publish sends env to current subscribers in order.
func (t *Tap) Publish(ctx context.Context, env envelope.Envelope) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrClosed
	}

	body, err := json.Marshal(wireFrame{Type: "update", Data: env.Payload.Raw()})
	if err != nil {
		metrics.TapPublishErrors.Inc()
		return fmt.Errorf("encode tap frame: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set(metaEventType, env.Type)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set(metaCorrelationID, id)
	}

	if err := t.pubsub.Publish(Topic, msg); err != nil {
		metrics.TapPublishErrors.Inc()
		return fmt.Errorf("publish tap frame: %w", err)
	}
	metrics.TapPublished.Inc()
	return nil
}

// Subscribe returns a channel of events published after the call. The
// channel is closed when ctx is cancelled or the tap is closed.
func (t *Tap) Subscribe(ctx context.Context) (<-chan Event, error) {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}

	msgs, err := t.pubsub.Subscribe(ctx, Topic)
	if err != nil {
		return nil, fmt.Errorf("subscribe tap: %w", err)
	}

	out := make(chan Event, t.buffer)
	go func() {
		defer close(out)
		for msg := range msgs {
			ev, err := toEvent(msg)
			msg.Ack()
			if err != nil {
				logging.Debug().Err(err).Str("component", "eventtap").Msg("Skipping undecodable tap message")
				continue
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			default:
				logging.Debug().Str("component", "eventtap").Str("event_type", ev.Type).
					Msg("Tap subscriber lagging, event dropped")
			}
		}
	}()
	return out, nil
}

func toEvent(msg *message.Message) (Event, error) {
	env, err := envelope.Decode(msg.Payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:            msg.UUID,
		Type:          env.Type,
		CorrelationID: msg.Metadata.Get(metaCorrelationID),
		Payload:       env.Payload,
	}, nil
}

// Close stops the tap and closes every subscriber channel.
func (t *Tap) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.pubsub.Close()
}
