// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

// Package models defines the resource types shared by the entity store, the
// REST fetcher and the event router.
//
// Server entities are schemaless from the client's point of view: the router
// only needs an identifier and a bag of fields it can merge partial updates
// into. Entity therefore stores raw decoded JSON values keyed by field name.
package models

import (
	"maps"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// ResourceKind names one cached entity collection.
type ResourceKind string

const (
	KindChannels       ResourceKind = "channels"
	KindChannelGroups  ResourceKind = "channel_groups"
	KindStreams        ResourceKind = "streams"
	KindPlaylists      ResourceKind = "playlists"
	KindEPGSources     ResourceKind = "epg_sources"
	KindEPGData        ResourceKind = "epg_data"
	KindLogos          ResourceKind = "logos"
	KindRecordings     ResourceKind = "recordings"
	KindStreamProfiles ResourceKind = "stream_profiles"
)

var kindEndpoints = map[ResourceKind]string{
	KindChannels:       "/api/channels/channels/",
	KindChannelGroups:  "/api/channels/groups/",
	KindStreams:        "/api/channels/streams/",
	KindPlaylists:      "/api/m3u/accounts/",
	KindEPGSources:     "/api/epg/sources/",
	KindEPGData:        "/api/epg/epgdata/",
	KindLogos:          "/api/channels/logos/",
	KindRecordings:     "/api/channels/recordings/",
	KindStreamProfiles: "/api/core/streamprofiles/",
}

// AllKinds returns every known kind in a stable order.
func AllKinds() []ResourceKind {
	return []ResourceKind{
		KindChannels, KindChannelGroups, KindStreams, KindPlaylists,
		KindEPGSources, KindEPGData, KindLogos, KindRecordings, KindStreamProfiles,
	}
}

// Valid reports whether k is a known kind.
func (k ResourceKind) Valid() bool {
	_, ok := kindEndpoints[k]
	return ok
}

// Endpoint returns the REST list path for k, or "" for unknown kinds.
func (k ResourceKind) Endpoint() string {
	return kindEndpoints[k]
}

func (k ResourceKind) String() string { return string(k) }

// Entity is one cached server object.
type Entity struct {
	Kind   ResourceKind   `json:"kind"`
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`

	// UpdatedAt is the newest server timestamp merged into Fields.
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Clone returns a copy whose Fields map can be modified independently.
// Nested values are shared.
func (e Entity) Clone() Entity {
	e.Fields = maps.Clone(e.Fields)
	if e.Fields == nil {
		e.Fields = map[string]any{}
	}
	return e
}

// Field returns the named field.
func (e Entity) Field(name string) (any, bool) {
	v, ok := e.Fields[name]
	return v, ok
}

// Patch is a partial update for one entity. Fields absent from the map are
// left untouched when the patch is merged.
type Patch struct {
	Fields map[string]any

	// UpdatedAt is zero when the server did not stamp the update.
	UpdatedAt time.Time
}

// EntityFromMap builds an entity from a decoded JSON object. The object must
// carry an "id" that NormalizeID accepts.
func EntityFromMap(kind ResourceKind, m map[string]any) (Entity, bool) {
	id, ok := NormalizeID(m["id"])
	if !ok {
		return Entity{}, false
	}
	e := Entity{Kind: kind, ID: id, Fields: maps.Clone(m)}
	if ts, ok := ParseTimestamp(m["updated_at"]); ok {
		e.UpdatedAt = ts
	}
	return e, true
}

// NormalizeID converts the identifier forms the server emits (numbers and
// strings) to a canonical string.
func NormalizeID(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		return id, id != ""
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case int:
		return strconv.Itoa(id), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case uint64:
		return strconv.FormatUint(id, 10), true
	case json.Number:
		return id.String(), id != ""
	default:
		return "", false
	}
}

// ParseTimestamp accepts RFC3339 strings and unix seconds.
func ParseTimestamp(v any) (time.Time, bool) {
	switch ts := v.(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	case float64:
		if ts <= 0 {
			return time.Time{}, false
		}
		sec := int64(ts)
		return time.Unix(sec, int64((ts-float64(sec))*1e9)).UTC(), true
	case int64:
		if ts <= 0 {
			return time.Time{}, false
		}
		return time.Unix(ts, 0).UTC(), true
	default:
		return time.Time{}, false
	}
}
