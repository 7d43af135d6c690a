// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/dispatchlink/internal/envelope"
	"github.com/tomtom215/dispatchlink/internal/logging"
	"github.com/tomtom215/dispatchlink/internal/metrics"
)

// Notification is one live correlated task. Only the latest raw payload is
// stored; text is rendered on demand.
type Notification struct {
	Key         string
	Phase       Phase
	LastPayload envelope.Payload
	Renderer    Renderer
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// Updates counts in-place updates after the initial emit.
	Updates int
}

// Render produces the current text of the notification.
func (n Notification) Render() Content {
	if n.Renderer == nil {
		return Content{Title: n.Key, Message: DefaultMessage(n.Phase, n.LastPayload)}
	}
	return n.Renderer(n.Phase, n.LastPayload)
}

// Correlator keeps at most one live notification per task key and drives
// the Toaster so repeated frames update one toast in place.
//
// Toaster calls are made while the Correlator's lock is held.
type Correlator struct {
	mu        sync.Mutex
	toaster   Toaster
	live      map[string]*Notification
	autoClose time.Duration
	now       func() time.Time
}

// CorrelatorOption configures a Correlator.
type CorrelatorOption func(*Correlator)

// WithAutoClose sets how long terminal notifications stay visible.
func WithAutoClose(d time.Duration) CorrelatorOption {
	return func(c *Correlator) {
		if d > 0 {
			c.autoClose = d
		}
	}
}

// WithNow overrides the clock used for timestamps.
func WithNow(now func() time.Time) CorrelatorOption {
	return func(c *Correlator) { c.now = now }
}

// NewCorrelator creates a Correlator rendering through toaster.
func NewCorrelator(toaster Toaster, opts ...CorrelatorOption) *Correlator {
	c := &Correlator{
		toaster:   toaster,
		live:      make(map[string]*Notification),
		autoClose: DefaultAutoClose,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upsert records a frame for the task identified by key.
//
// The first non-terminal frame for a key emits a persistent toast that the
// user cannot dismiss. Later frames update it in place. A terminal frame
// turns it into a dismissible, auto-closing toast and releases the key, so
// a later task reusing the key starts a new notification. A terminal frame
// for a key with no live notification emits a one-shot toast.
func (c *Correlator) Upsert(key string, phase Phase, payload envelope.Payload, render Renderer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	n, exists := c.live[key]
	if !exists {
		n = &Notification{Key: key, CreatedAt: now}
	}
	n.Phase = phase
	n.LastPayload = payload
	n.UpdatedAt = now
	if render != nil {
		n.Renderer = render
	}

	spec := c.specFor(n)

	switch {
	case !exists && phase.Terminal():
		spec.Key = ""
		c.toaster.Emit(spec)
		logging.Debug().Str("key", key).Str("phase", string(phase)).
			Msg("Terminal progress frame without a live notification")
		return
	case !exists:
		c.live[key] = n
		c.toaster.Emit(spec)
	default:
		n.Updates++
		c.toaster.Update(key, spec)
	}

	if phase.Terminal() {
		delete(c.live, key)
	}
	metrics.NotificationsLive.Set(float64(len(c.live)))
}

func (c *Correlator) specFor(n *Notification) ToastSpec {
	content := n.Render()
	spec := ToastSpec{
		Key:     n.Key,
		Level:   n.Phase.Level(),
		Title:   content.Title,
		Message: content.Message,
	}
	if n.Phase.Terminal() {
		spec.Dismissible = true
		spec.AutoClose = c.autoClose
	} else {
		spec.Persistent = true
		spec.Loading = true
	}
	return spec
}

// Live returns a copy of the live notification for key.
func (c *Correlator) Live(key string) (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.live[key]
	if !ok {
		return Notification{}, false
	}
	return *n, true
}

// Snapshot returns copies of all live notifications ordered by creation time.
func (c *Correlator) Snapshot() []Notification {
	c.mu.Lock()
	out := make([]Notification, 0, len(c.live))
	for _, n := range c.live {
		out = append(out, *n)
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Len returns the number of live notifications.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

// Reset dismisses every live notification and forgets all keys.
func (c *Correlator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.live {
		c.toaster.Dismiss(key)
	}
	clear(c.live)
	metrics.NotificationsLive.Set(0)
}
