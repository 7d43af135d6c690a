// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

// Package router decodes realtime frames and dispatches them by event type.
//
// The dispatch table is built once in New. HandleFrame is called by the
// connection manager on its loop goroutine, one frame at a time, so frames
// are dispatched strictly in delivery order. Handlers never block on the
// network: refetches are started in their own goroutine and not awaited.
//
// Every handler step runs under recover. A failing step is logged and
// counted; the remaining steps of the same frame still run, and later frames
// are unaffected.
package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/dispatchlink/internal/envelope"
	"github.com/tomtom215/dispatchlink/internal/logging"
	"github.com/tomtom215/dispatchlink/internal/metrics"
	"github.com/tomtom215/dispatchlink/internal/models"
	"github.com/tomtom215/dispatchlink/internal/notify"
)

var (
	// ErrUnknownType is returned by Dispatch for event types with no handler.
	ErrUnknownType = errors.New("unknown event type")

	// ErrMissingID is returned when a patch payload lacks its identifier.
	ErrMissingID = errors.New("payload missing entity id")

	// ErrHandlerPanic wraps a recovered handler panic.
	ErrHandlerPanic = errors.New("handler panicked")
)

// EntityStore is the cache collaborator updated by handlers.
type EntityStore interface {
	// Refetch reloads the authoritative list for kind. Concurrent calls for
	// the same kind may be coalesced.
	Refetch(ctx context.Context, kind models.ResourceKind) error

	// Lookup returns the cached entity, if any.
	Lookup(kind models.ResourceKind, id string) (models.Entity, bool)

	// ApplyPartial merges patch into the cached entity.
	ApplyPartial(kind models.ResourceKind, id string, patch models.Patch) error
}

// Progress receives correlated progress frames. *notify.Correlator
// implements it.
type Progress interface {
	Upsert(key string, phase notify.Phase, payload envelope.Payload, render notify.Renderer)
}

// Tap observes every dispatched envelope.
type Tap interface {
	Publish(ctx context.Context, env envelope.Envelope) error
}

// Handler processes one event. It must return promptly.
type Handler func(ctx context.Context, env envelope.Envelope) error

// Router maps event types to handlers.
type Router struct {
	store    EntityStore
	toaster  notify.Toaster
	progress Progress
	tap      Tap

	refetchTimeout time.Duration

	handlers   map[string]Handler
	categories map[string]Category

	wg sync.WaitGroup
}

// Option configures a Router.
type Option func(*Router)

// WithTap publishes every successfully routed envelope to t.
func WithTap(t Tap) Option {
	return func(r *Router) { r.tap = t }
}

// WithRefetchTimeout bounds each background refetch. Default: 30s
func WithRefetchTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.refetchTimeout = d
		}
	}
}

// New builds a Router and its dispatch table.
func New(store EntityStore, toaster notify.Toaster, progress Progress, opts ...Option) *Router {
	r := &Router{
		store:          store,
		toaster:        toaster,
		progress:       progress,
		refetchTimeout: 30 * time.Second,
		handlers:       make(map[string]Handler),
		categories:     make(map[string]Category),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.registerCatalog()
	return r
}

func (r *Router) register(eventType string, cat Category, h Handler) {
	if _, dup := r.handlers[eventType]; dup {
		panic(fmt.Sprintf("router: duplicate handler for %q", eventType))
	}
	r.handlers[eventType] = h
	r.categories[eventType] = cat
}

// HandleFrame decodes raw and dispatches it. Decode failures and the
// connection acknowledgement are consumed here. It implements
// connection.FrameHandler.
func (r *Router) HandleFrame(ctx context.Context, raw []byte) {
	ctx = logging.ContextWithNewCorrelationID(ctx)

	env, err := envelope.Decode(raw)
	if err != nil {
		metrics.RecordDecodeError(envelope.Reason(err))
		logging.Ctx(ctx).Warn().Err(err).Int("bytes", len(raw)).Msg("Dropping undecodable frame")
		return
	}

	if env.Kind == envelope.KindConnectionEstablished {
		logging.Ctx(ctx).Info().Str("message", env.Message()).Msg("Realtime connection acknowledged")
		return
	}

	_ = r.Dispatch(ctx, env)
}

// Dispatch runs the handler registered for env.Type. Errors are logged and
// counted before being returned.
func (r *Router) Dispatch(ctx context.Context, env envelope.Envelope) error {
	log := logging.Ctx(ctx)

	h, ok := r.handlers[env.Type]
	if !ok {
		metrics.UnknownEvents.Inc()
		log.Warn().Str("event_type", env.Type).Msg("Unknown realtime event type")
		return fmt.Errorf("%w: %s", ErrUnknownType, env.Type)
	}

	start := time.Now()
	err := safeStep(ctx, env, h)
	metrics.RecordDispatch(env.Type, time.Since(start))

	if err != nil {
		metrics.RecordHandlerError(env.Type)
		log.Error().Err(err).Str("event_type", env.Type).Msg("Realtime event handler failed")
	} else {
		log.Debug().Str("event_type", env.Type).Str("category", r.categories[env.Type].String()).
			Msg("Realtime event dispatched")
	}

	if r.tap != nil {
		if terr := r.tap.Publish(ctx, env); terr != nil {
			log.Debug().Err(terr).Str("event_type", env.Type).Msg("Event tap publish failed")
		}
	}
	return err
}

// Handles reports whether eventType has a registered handler.
func (r *Router) Handles(eventType string) bool {
	_, ok := r.handlers[eventType]
	return ok
}

// CategoryOf returns the category of a registered event type.
func (r *Router) CategoryOf(eventType string) (Category, bool) {
	c, ok := r.categories[eventType]
	return c, ok
}

// Types returns every registered event type, sorted.
func (r *Router) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Wait blocks until all background refetches started so far have finished.
func (r *Router) Wait() {
	r.wg.Wait()
}

// safeStep runs h, converting a panic into an error.
func safeStep(ctx context.Context, env envelope.Envelope, h Handler) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, p)
			logging.Ctx(ctx).Error().Str("event_type", env.Type).Str("stack", string(debug.Stack())).
				Msg("Recovered handler panic")
		}
	}()
	return h(ctx, env)
}
