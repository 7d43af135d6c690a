// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

// Package store is an in-memory cache of server entities, one collection
// per resource kind.
//
// Collections are filled by Refetch and updated in place by ApplyPartial.
// Both write paths merge at field level: every field remembers the
// timestamp of the write that set it, and an older write never overwrites
// a newer one. A patch is stamped with its updated_at when the server sends
// one; otherwise with the time it was applied. A refetch result is stamped
// with each entity's updated_at, or the time the fetch was issued.
//
// Concurrent Refetch calls for the same kind share one request.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/dispatchlink/internal/logging"
	"github.com/tomtom215/dispatchlink/internal/metrics"
	"github.com/tomtom215/dispatchlink/internal/models"
)

var (
	// ErrNotFound is returned when patching an entity that is not cached.
	ErrNotFound = errors.New("entity not cached")

	// ErrUnknownKind is returned for resource kinds the store does not know.
	ErrUnknownKind = errors.New("unknown resource kind")

	// ErrNoFetcher is returned by Refetch when the store has no fetcher.
	ErrNoFetcher = errors.New("no fetcher configured")
)

// Fetcher loads the authoritative list of a collection.
type Fetcher interface {
	List(ctx context.Context, kind models.ResourceKind) ([]models.Entity, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, kind models.ResourceKind) ([]models.Entity, error)

func (f FetcherFunc) List(ctx context.Context, kind models.ResourceKind) ([]models.Entity, error) {
	return f(ctx, kind)
}

type record struct {
	entity models.Entity
	stamps map[string]time.Time
}

type collection struct {
	records  map[string]*record
	loaded   bool
	loadedAt time.Time
}

// Store caches entities by kind and id. Safe for concurrent use.
type Store struct {
	fetcher Fetcher
	now     func() time.Time

	mu          sync.RWMutex
	collections map[models.ResourceKind]*collection

	group singleflight.Group

	onChange func(kind models.ResourceKind)
}

// Option configures a Store.
type Option func(*Store)

// WithNow overrides the clock used to stamp unstamped writes.
func WithNow(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithOnChange registers a callback invoked after a collection changes.
// It runs outside the store's lock.
func WithOnChange(fn func(kind models.ResourceKind)) Option {
	return func(s *Store) { s.onChange = fn }
}

// New creates an empty Store backed by fetcher.
func New(fetcher Fetcher, opts ...Option) *Store {
	s := &Store{
		fetcher:     fetcher,
		now:         time.Now,
		collections: make(map[models.ResourceKind]*collection),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) collectionLocked(kind models.ResourceKind) *collection {
	c := s.collections[kind]
	if c == nil {
		c = &collection{records: make(map[string]*record)}
		s.collections[kind] = c
	}
	return c
}

// Refetch reloads kind from the fetcher and merges the result. Callers that
// arrive while a fetch for kind is running share its outcome.
func (s *Store) Refetch(ctx context.Context, kind models.ResourceKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if s.fetcher == nil {
		return ErrNoFetcher
	}

	_, err, shared := s.group.Do(kind.String(), func() (any, error) {
		issued := s.now()
		entities, err := s.fetcher.List(ctx, kind)
		if err != nil {
			return nil, err
		}
		s.Load(kind, entities, issued)
		return nil, nil
	})

	switch {
	case err != nil:
		metrics.RecordRefetch(kind.String(), "error")
		return fmt.Errorf("refetch %s: %w", kind, err)
	case shared:
		metrics.RecordRefetch(kind.String(), "shared")
	default:
		metrics.RecordRefetch(kind.String(), "success")
	}
	return nil
}

// Load replaces the membership of kind with entities. Fields already
// written by a newer patch are kept. asOf stamps entities that carry no
// updated_at of their own.
func (s *Store) Load(kind models.ResourceKind, entities []models.Entity, asOf time.Time) {
	s.mu.Lock()
	c := s.collectionLocked(kind)

	seen := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		if e.ID == "" {
			continue
		}
		seen[e.ID] = struct{}{}

		stamp := asOf
		if !e.UpdatedAt.IsZero() {
			stamp = e.UpdatedAt
		}

		rec, ok := c.records[e.ID]
		if !ok {
			fresh := e.Clone()
			fresh.Kind = kind
			rec = &record{entity: fresh, stamps: make(map[string]time.Time, len(fresh.Fields))}
			for f := range fresh.Fields {
				rec.stamps[f] = stamp
			}
			c.records[e.ID] = rec
			continue
		}

		merged := rec.entity.Clone()
		for f, v := range e.Fields {
			if prev, ok := rec.stamps[f]; ok && prev.After(stamp) {
				continue
			}
			merged.Fields[f] = v
			rec.stamps[f] = stamp
		}
		if e.UpdatedAt.After(merged.UpdatedAt) {
			merged.UpdatedAt = e.UpdatedAt
		}
		rec.entity = merged
	}

	removed := 0
	for id := range c.records {
		if _, ok := seen[id]; !ok {
			delete(c.records, id)
			removed++
		}
	}
	c.loaded = true
	c.loadedAt = s.now()
	size := len(c.records)
	s.mu.Unlock()

	logging.Debug().Str("component", "store").Str("kind", kind.String()).Int("entities", size).
		Int("removed", removed).Msg("Collection loaded")
	s.changed(kind)
}

// Lookup returns a copy of the cached entity.
func (s *Store) Lookup(kind models.ResourceKind, id string) (models.Entity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.collections[kind]
	if c == nil {
		return models.Entity{}, false
	}
	rec, ok := c.records[id]
	if !ok {
		return models.Entity{}, false
	}
	return rec.entity.Clone(), true
}

// ApplyPartial merges patch into a cached entity. Fields last written by
// something newer than the patch are left alone.
func (s *Store) ApplyPartial(kind models.ResourceKind, id string, patch models.Patch) error {
	stamp := patch.UpdatedAt
	if stamp.IsZero() {
		stamp = s.now()
	}

	s.mu.Lock()
	c := s.collections[kind]
	var rec *record
	if c != nil {
		rec = c.records[id]
	}
	if rec == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", ErrNotFound, kind, id)
	}

	merged := rec.entity.Clone()
	applied := 0
	for f, v := range patch.Fields {
		if prev, ok := rec.stamps[f]; ok && prev.After(stamp) {
			continue
		}
		merged.Fields[f] = v
		rec.stamps[f] = stamp
		applied++
	}
	if patch.UpdatedAt.After(merged.UpdatedAt) {
		merged.UpdatedAt = patch.UpdatedAt
	}
	rec.entity = merged
	s.mu.Unlock()

	if applied == 0 {
		logging.Debug().Str("component", "store").Str("kind", kind.String()).Str("id", id).
			Msg("Patch older than cached fields")
		return nil
	}
	metrics.PatchesApplied.WithLabelValues(kind.String()).Inc()
	s.changed(kind)
	return nil
}

// Put inserts or replaces one entity outright.
func (s *Store) Put(e models.Entity) error {
	if !e.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	if e.ID == "" {
		return errors.New("entity id required")
	}
	stamp := e.UpdatedAt
	if stamp.IsZero() {
		stamp = s.now()
	}

	s.mu.Lock()
	c := s.collectionLocked(e.Kind)
	fresh := e.Clone()
	rec := &record{entity: fresh, stamps: make(map[string]time.Time, len(fresh.Fields))}
	for f := range fresh.Fields {
		rec.stamps[f] = stamp
	}
	c.records[e.ID] = rec
	s.mu.Unlock()

	s.changed(e.Kind)
	return nil
}

// List returns copies of every cached entity of kind, ordered by id.
func (s *Store) List(kind models.ResourceKind) []models.Entity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.collections[kind]
	if c == nil {
		return nil
	}
	out := make([]models.Entity, 0, len(c.records))
	for _, rec := range c.records {
		out = append(out, rec.entity.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of cached entities of kind.
func (s *Store) Len(kind models.ResourceKind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c := s.collections[kind]; c != nil {
		return len(c.records)
	}
	return 0
}

// Loaded reports whether kind has been filled by a fetch, and when.
func (s *Store) Loaded(kind models.ResourceKind) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c := s.collections[kind]; c != nil && c.loaded {
		return c.loadedAt, true
	}
	return time.Time{}, false
}

// Reset drops every collection.
func (s *Store) Reset() {
	s.mu.Lock()
	s.collections = make(map[models.ResourceKind]*collection)
	s.mu.Unlock()
}

func (s *Store) changed(kind models.ResourceKind) {
	if s.onChange != nil {
		s.onChange(kind)
	}
}
