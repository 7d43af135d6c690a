// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/dispatchlink/internal/metrics"
	"github.com/tomtom215/dispatchlink/internal/models"
)

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func entity(kind models.ResourceKind, id string, fields map[string]any) models.Entity {
	f := map[string]any{"id": id}
	for k, v := range fields {
		f[k] = v
	}
	return models.Entity{Kind: kind, ID: id, Fields: f}
}

func staticFetcher(entities ...models.Entity) Fetcher {
	return FetcherFunc(func(context.Context, models.ResourceKind) ([]models.Entity, error) {
		return entities, nil
	})
}

func TestRefetchLoadsCollection(t *testing.T) {
	t.Parallel()

	s := New(staticFetcher(
		entity(models.KindChannels, "2", map[string]any{"name": "News"}),
		entity(models.KindChannels, "1", map[string]any{"name": "Sports"}),
	))

	if err := s.Refetch(context.Background(), models.KindChannels); err != nil {
		t.Fatalf("Refetch() = %v", err)
	}
	list := s.List(models.KindChannels)
	if len(list) != 2 || list[0].ID != "1" || list[1].ID != "2" {
		t.Fatalf("List() = %+v", list)
	}
	if _, ok := s.Loaded(models.KindChannels); !ok {
		t.Error("collection not marked loaded")
	}
	e, ok := s.Lookup(models.KindChannels, "2")
	if !ok || e.Fields["name"] != "News" {
		t.Errorf("Lookup(2) = %+v, %v", e, ok)
	}
}

func TestRefetchRemovesMissingEntities(t *testing.T) {
	t.Parallel()

	var round atomic.Int32
	s := New(FetcherFunc(func(context.Context, models.ResourceKind) ([]models.Entity, error) {
		if round.Add(1) == 1 {
			return []models.Entity{
				entity(models.KindLogos, "a", nil),
				entity(models.KindLogos, "b", nil),
			}, nil
		}
		return []models.Entity{entity(models.KindLogos, "b", nil)}, nil
	}))

	ctx := context.Background()
	if err := s.Refetch(ctx, models.KindLogos); err != nil {
		t.Fatal(err)
	}
	if err := s.Refetch(ctx, models.KindLogos); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Lookup(models.KindLogos, "a"); ok {
		t.Error("deleted entity still cached")
	}
	if s.Len(models.KindLogos) != 1 {
		t.Errorf("Len() = %d, want 1", s.Len(models.KindLogos))
	}
}

func TestRefetchCoalesces(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	s := New(FetcherFunc(func(context.Context, models.ResourceKind) ([]models.Entity, error) {
		calls.Add(1)
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return []models.Entity{entity(models.KindStreams, "1", nil)}, nil
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Refetch(context.Background(), models.KindStreams)
	}()
	<-started

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Refetch(context.Background(), models.KindStreams)
		}()
	}
	// Give the followers time to join the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("fetcher called %d times, want 1", n)
	}
}

func TestRefetchError(t *testing.T) {
	t.Parallel()

	boom := errors.New("503")
	s := New(FetcherFunc(func(context.Context, models.ResourceKind) ([]models.Entity, error) {
		return nil, boom
	}))
	if err := s.Refetch(context.Background(), models.KindEPGSources); !errors.Is(err, boom) {
		t.Errorf("Refetch() = %v, want wrapped 503", err)
	}
	if _, ok := s.Loaded(models.KindEPGSources); ok {
		t.Error("failed fetch marked collection loaded")
	}
}

func TestRefetchValidation(t *testing.T) {
	t.Parallel()

	if err := New(nil).Refetch(context.Background(), models.KindChannels); !errors.Is(err, ErrNoFetcher) {
		t.Errorf("nil fetcher: %v", err)
	}
	if err := New(staticFetcher()).Refetch(context.Background(), "widgets"); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("unknown kind: %v", err)
	}
}

func TestApplyPartialMissing(t *testing.T) {
	t.Parallel()

	s := New(nil)
	err := s.ApplyPartial(models.KindRecordings, "9", models.Patch{Fields: map[string]any{"status": "done"}})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("ApplyPartial() = %v, want ErrNotFound", err)
	}
}

func TestApplyPartialMergesFields(t *testing.T) {
	s := New(nil)
	if err := s.Put(entity(models.KindPlaylists, "3", map[string]any{"name": "A", "status": "idle"})); err != nil {
		t.Fatal(err)
	}
	before := testutil.ToFloat64(metrics.PatchesApplied.WithLabelValues("playlists"))

	err := s.ApplyPartial(models.KindPlaylists, "3", models.Patch{Fields: map[string]any{"status": "parsing"}})
	if err != nil {
		t.Fatal(err)
	}
	e, _ := s.Lookup(models.KindPlaylists, "3")
	if e.Fields["status"] != "parsing" || e.Fields["name"] != "A" {
		t.Errorf("fields after patch = %v", e.Fields)
	}
	if got := testutil.ToFloat64(metrics.PatchesApplied.WithLabelValues("playlists")) - before; got != 1 {
		t.Errorf("applied counter delta = %v, want 1", got)
	}
}

func TestStalePatchIgnored(t *testing.T) {
	t.Parallel()

	s := New(nil)

	if err := s.Put(entity(models.KindRecordings, "5", nil)); err != nil {
		t.Fatal(err)
	}
	newer := models.Patch{Fields: map[string]any{"status": "recording"}, UpdatedAt: t0.Add(time.Minute)}
	older := models.Patch{Fields: map[string]any{"status": "scheduled"}, UpdatedAt: t0}

	if err := s.ApplyPartial(models.KindRecordings, "5", newer); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyPartial(models.KindRecordings, "5", older); err != nil {
		t.Fatal(err)
	}
	e, _ := s.Lookup(models.KindRecordings, "5")
	if e.Fields["status"] != "recording" {
		t.Errorf("status = %v, want recording (older patch must lose)", e.Fields["status"])
	}
	if !e.UpdatedAt.Equal(t0.Add(time.Minute)) {
		t.Errorf("UpdatedAt = %v", e.UpdatedAt)
	}
}

// A patch that lands while a refetch is in flight must survive the
// refetch result, which was read from the server before the patch.
func TestPatchDuringRefetchSurvives(t *testing.T) {
	t.Parallel()

	clock := &stepClock{now: t0}
	release := make(chan struct{})
	started := make(chan struct{})
	s := New(FetcherFunc(func(context.Context, models.ResourceKind) ([]models.Entity, error) {
		close(started)
		<-release
		return []models.Entity{entity(models.KindEPGSources, "4", map[string]any{"status": "idle", "name": "XMLTV"})}, nil
	}), WithNow(clock.Now))

	if err := s.Put(entity(models.KindEPGSources, "4", map[string]any{"status": "idle"})); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Refetch(context.Background(), models.KindEPGSources) }()
	<-started

	clock.Advance(time.Second)
	if err := s.ApplyPartial(models.KindEPGSources, "4", models.Patch{Fields: map[string]any{"status": "fetching"}}); err != nil {
		t.Fatal(err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	e, _ := s.Lookup(models.KindEPGSources, "4")
	if e.Fields["status"] != "fetching" {
		t.Errorf("status = %v, want fetching", e.Fields["status"])
	}
	if e.Fields["name"] != "XMLTV" {
		t.Errorf("name = %v, want refetched value", e.Fields["name"])
	}
}

func TestRefetchNewerThanPatchWins(t *testing.T) {
	t.Parallel()

	fetched := entity(models.KindChannels, "8", map[string]any{"enabled": false})
	fetched.UpdatedAt = t0.Add(time.Hour)
	s := New(staticFetcher(fetched))

	if err := s.Put(entity(models.KindChannels, "8", nil)); err != nil {
		t.Fatal(err)
	}
	patch := models.Patch{Fields: map[string]any{"enabled": true}, UpdatedAt: t0}
	if err := s.ApplyPartial(models.KindChannels, "8", patch); err != nil {
		t.Fatal(err)
	}
	if err := s.Refetch(context.Background(), models.KindChannels); err != nil {
		t.Fatal(err)
	}
	e, _ := s.Lookup(models.KindChannels, "8")
	if e.Fields["enabled"] != false {
		t.Errorf("enabled = %v, want false from newer refetch", e.Fields["enabled"])
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	t.Parallel()

	s := New(nil)
	if err := s.Put(entity(models.KindStreams, "1", map[string]any{"url": "http://a"})); err != nil {
		t.Fatal(err)
	}
	e, _ := s.Lookup(models.KindStreams, "1")
	e.Fields["url"] = "mutated"

	again, _ := s.Lookup(models.KindStreams, "1")
	if again.Fields["url"] != "http://a" {
		t.Error("Lookup exposed internal map")
	}
}

func TestOnChangeAndReset(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var changes []models.ResourceKind
	s := New(staticFetcher(entity(models.KindLogos, "1", nil)), WithOnChange(func(k models.ResourceKind) {
		mu.Lock()
		changes = append(changes, k)
		mu.Unlock()
	}))

	if err := s.Refetch(context.Background(), models.KindLogos); err != nil {
		t.Fatal(err)
	}
	if err := s.ApplyPartial(models.KindLogos, "1", models.Patch{Fields: map[string]any{"x": 1}}); err != nil {
		t.Fatal(err)
	}
	mu.Lock()
	n := len(changes)
	mu.Unlock()
	if n != 2 {
		t.Errorf("onChange called %d times, want 2", n)
	}

	s.Reset()
	if s.Len(models.KindLogos) != 0 {
		t.Error("Reset left entities behind")
	}
}
