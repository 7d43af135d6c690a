// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package router

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/dispatchlink/internal/envelope"
	"github.com/tomtom215/dispatchlink/internal/logging"
	"github.com/tomtom215/dispatchlink/internal/metrics"
	"github.com/tomtom215/dispatchlink/internal/models"
	"github.com/tomtom215/dispatchlink/internal/notify"
)

// Category groups handlers by their contract.
type Category int

const (
	// CategoryRefresh handlers ask the store to refetch whole collections.
	CategoryRefresh Category = iota
	// CategoryToast handlers emit one uncorrelated toast.
	CategoryToast
	// CategoryProgress handlers feed the progress correlator.
	CategoryProgress
	// CategoryPatch handlers update a cached entity if it is present.
	CategoryPatch
)

func (c Category) String() string {
	switch c {
	case CategoryRefresh:
		return "refresh"
	case CategoryToast:
		return "toast"
	case CategoryProgress:
		return "progress"
	case CategoryPatch:
		return "patch"
	default:
		return "unknown"
	}
}

// chain runs every step even when an earlier one fails or panics.
func chain(steps ...Handler) Handler {
	return func(ctx context.Context, env envelope.Envelope) error {
		var errs []error
		for _, step := range steps {
			if err := safeStep(ctx, env, step); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// refresh starts a background refetch of each kind and returns at once.
func (r *Router) refresh(kinds ...models.ResourceKind) Handler {
	return func(ctx context.Context, _ envelope.Envelope) error {
		for _, kind := range kinds {
			r.refetch(ctx, kind)
		}
		return nil
	}
}

// refetch is fire-and-forget. The goroutine outlives the frame's context
// but is bounded by refetchTimeout.
func (r *Router) refetch(ctx context.Context, kind models.ResourceKind) {
	if r.store == nil {
		return
	}
	bg := context.WithoutCancel(ctx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				logging.Ctx(bg).Error().Str("kind", kind.String()).Interface("panic", p).
					Msg("Recovered refetch panic")
			}
		}()

		rctx, cancel := context.WithTimeout(bg, r.refetchTimeout)
		defer cancel()

		if err := r.store.Refetch(rctx, kind); err != nil {
			logging.Ctx(bg).Warn().Err(err).Str("kind", kind.String()).Msg("Background refetch failed")
		}
	}()
}

// toast emits one spec built from the payload.
func (r *Router) toast(build func(p envelope.Payload) notify.ToastSpec) Handler {
	return func(_ context.Context, env envelope.Envelope) error {
		if r.toaster == nil {
			return nil
		}
		spec := build(env.Payload)
		spec.Key = ""
		r.toaster.Emit(spec)
		return nil
	}
}

// progressTask describes a correlated long-running server task.
type progressTask struct {
	// name prefixes the correlation key.
	name string

	// keyFields are tried in order; the first present one identifies the
	// task instance. Without any, all frames share one key.
	keyFields []string

	render notify.Renderer

	// onSuccess is refetched once the task completes.
	onSuccess []models.ResourceKind
}

func (t progressTask) key(p envelope.Payload) string {
	for _, f := range t.keyFields {
		if v := p.Get(f); v.Exists() && v.String() != "" {
			return t.name + ":" + v.String()
		}
	}
	return t.name
}

func (r *Router) progressHandler(task progressTask) Handler {
	return func(ctx context.Context, env envelope.Envelope) error {
		phase := notify.PhaseOf(env.Payload)
		if r.progress != nil {
			r.progress.Upsert(task.key(env.Payload), phase, env.Payload, task.render)
		}
		if phase.Succeeded() {
			for _, kind := range task.onSuccess {
				r.refetch(ctx, kind)
			}
		}
		return nil
	}
}

// patchTarget describes a conditional patch: which cache, which payload
// field carries the entity id, and which fields are copied. An empty
// fields list copies every payload field except the id and the type tag.
type patchTarget struct {
	kind    models.ResourceKind
	idField string
	fields  []string
}

func (t patchTarget) build(p envelope.Payload) (models.Patch, error) {
	all, err := p.Map()
	if err != nil {
		return models.Patch{}, fmt.Errorf("decode %s patch: %w", t.kind, err)
	}

	patch := models.Patch{Fields: make(map[string]any)}
	if len(t.fields) == 0 {
		for k, v := range all {
			if k == "type" || k == t.idField {
				continue
			}
			patch.Fields[k] = v
		}
	} else {
		for _, f := range t.fields {
			if v, ok := all[f]; ok {
				patch.Fields[f] = v
			}
		}
	}
	if ts, ok := models.ParseTimestamp(all["updated_at"]); ok {
		patch.UpdatedAt = ts
	}
	return patch, nil
}

// patch applies a partial update when the entity is cached and drops the
// frame silently otherwise.
func (r *Router) patch(target patchTarget) Handler {
	return func(ctx context.Context, env envelope.Envelope) error {
		idv := env.Payload.Get(target.idField)
		id, ok := models.NormalizeID(idv.Value())
		if !idv.Exists() || !ok {
			return fmt.Errorf("%w: %s.%s", ErrMissingID, env.Type, target.idField)
		}
		if r.store == nil {
			return nil
		}

		if _, found := r.store.Lookup(target.kind, id); !found {
			metrics.PatchesDropped.WithLabelValues(target.kind.String()).Inc()
			logging.Ctx(ctx).Debug().Str("event_type", env.Type).Str("kind", target.kind.String()).
				Str("id", id).Msg("Dropping patch for uncached entity")
			return nil
		}

		patch, err := target.build(env.Payload)
		if err != nil {
			return err
		}
		if len(patch.Fields) == 0 {
			return nil
		}
		return r.store.ApplyPartial(target.kind, id, patch)
	}
}

// namedTitle renders "<title>: <name>" when the payload names the subject.
func namedTitle(title string, nameFields ...string) notify.Renderer {
	return func(phase notify.Phase, p envelope.Payload) notify.Content {
		t := title
		for _, f := range nameFields {
			if n := strings.TrimSpace(p.String(f)); n != "" {
				t = title + ": " + n
				break
			}
		}
		return notify.Content{Title: t, Message: notify.DefaultMessage(phase, p)}
	}
}

// firstString returns the first non-empty string field, or fallback.
func firstString(p envelope.Payload, fallback string, fields ...string) string {
	for _, f := range fields {
		if s := strings.TrimSpace(p.String(f)); s != "" {
			return s
		}
	}
	return fallback
}
