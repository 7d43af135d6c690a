// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package router

import (
	"fmt"

	"github.com/tomtom215/dispatchlink/internal/envelope"
	"github.com/tomtom215/dispatchlink/internal/models"
	"github.com/tomtom215/dispatchlink/internal/notify"
)

// Event types carried in data.type.
const (
	// Refresh triggers
	EventChannelsUpdated       = "channels_updated"
	EventChannelGroupsUpdated  = "channel_groups_updated"
	EventStreamsUpdated        = "streams_updated"
	EventPlaylistsUpdated      = "playlists_updated"
	EventEPGSourcesUpdated     = "epg_sources_updated"
	EventEPGDataUpdated        = "epg_data_updated"
	EventLogosUpdated          = "logos_updated"
	EventRecordingsUpdated     = "recordings_updated"
	EventStreamProfilesUpdated = "stream_profiles_updated"
	EventM3UGroupRefresh       = "m3u_group_refresh"

	// One-shot toasts
	EventPlaylistCreated  = "playlist_created"
	EventEPGMatch         = "epg_match"
	EventRecordingStarted = "recording_started"
	EventRecordingEnded   = "recording_ended"
	EventRecordingFailed  = "recording_failed"
	EventUpdateAvailable  = "update_available"
	EventLogoCleanup      = "logo_cleanup"
	EventStreamSwitched   = "stream_switched"
	EventBackupCompleted  = "backup_completed"
	EventSystemNotice     = "system_notice"

	// Correlated progress
	EventM3URefresh     = "m3u_refresh"
	EventEPGRefresh     = "epg_refresh"
	EventStreamRehash   = "stream_rehash"
	EventChannelImport  = "channel_import"
	EventEPGMatching    = "epg_matching"
	EventLogoProcessing = "logo_processing"
	EventComskipStatus  = "comskip_status"

	// Conditional patches
	EventPlaylistStatus  = "playlist_status"
	EventEPGSourceStatus = "epg_source_status"
	EventStreamStats     = "stream_stats"
	EventChannelStats    = "channel_stats"
	EventRecordingStatus = "recording_status"
)

func (r *Router) registerCatalog() {
	r.registerRefreshes()
	r.registerToasts()
	r.registerProgress()
	r.registerPatches()
}

func (r *Router) registerRefreshes() {
	for eventType, kind := range map[string]models.ResourceKind{
		EventChannelsUpdated:       models.KindChannels,
		EventChannelGroupsUpdated:  models.KindChannelGroups,
		EventStreamsUpdated:        models.KindStreams,
		EventPlaylistsUpdated:      models.KindPlaylists,
		EventEPGSourcesUpdated:     models.KindEPGSources,
		EventEPGDataUpdated:        models.KindEPGData,
		EventLogosUpdated:          models.KindLogos,
		EventRecordingsUpdated:     models.KindRecordings,
		EventStreamProfilesUpdated: models.KindStreamProfiles,
	} {
		r.register(eventType, CategoryRefresh, r.refresh(kind))
	}
	r.register(EventM3UGroupRefresh, CategoryRefresh,
		r.refresh(models.KindChannelGroups, models.KindPlaylists))
}

func (r *Router) registerToasts() {
	r.register(EventPlaylistCreated, CategoryToast, chain(
		r.toast(func(p envelope.Payload) notify.ToastSpec {
			name := firstString(p, "", "name", "account_name")
			msg := firstString(p, "", "message")
			if msg == "" && name != "" {
				msg = fmt.Sprintf("%s was added", name)
			}
			return notify.Success("Playlist created", msg)
		}),
		r.refresh(models.KindPlaylists),
	))

	r.register(EventEPGMatch, CategoryToast, chain(
		r.toast(func(p envelope.Payload) notify.ToastSpec {
			msg := firstString(p, "", "message")
			if n, ok := p.Int("matched"); ok && msg == "" {
				msg = fmt.Sprintf("Matched %d channels", n)
			}
			return notify.Info("EPG match", msg)
		}),
		r.refresh(models.KindChannels),
	))

	r.register(EventRecordingStarted, CategoryToast, chain(
		r.toast(func(p envelope.Payload) notify.ToastSpec {
			return notify.Info("Recording started", firstString(p, "", "program_title", "title", "channel_name", "message"))
		}),
		r.refresh(models.KindRecordings),
	))

	r.register(EventRecordingEnded, CategoryToast, chain(
		r.toast(func(p envelope.Payload) notify.ToastSpec {
			return notify.Success("Recording finished", firstString(p, "", "program_title", "title", "channel_name", "message"))
		}),
		r.refresh(models.KindRecordings),
	))

	r.register(EventRecordingFailed, CategoryToast, chain(
		r.toast(func(p envelope.Payload) notify.ToastSpec {
			return notify.Failure("Recording failed", firstString(p, "Unknown error", "error", "reason", "message"))
		}),
		r.refresh(models.KindRecordings),
	))

	r.register(EventUpdateAvailable, CategoryToast, r.toast(func(p envelope.Payload) notify.ToastSpec {
		msg := firstString(p, "", "message")
		if v := firstString(p, "", "latest_version", "version"); msg == "" && v != "" {
			msg = fmt.Sprintf("Version %s is available", v)
		}
		return notify.Info("Update available", msg)
	}))

	r.register(EventLogoCleanup, CategoryToast, chain(
		r.toast(func(p envelope.Payload) notify.ToastSpec {
			msg := firstString(p, "", "message")
			if n, ok := p.Int("deleted_count"); ok && msg == "" {
				msg = fmt.Sprintf("Removed %d unused logos", n)
			}
			return notify.Success("Logo cleanup", msg)
		}),
		r.refresh(models.KindLogos),
	))

	r.register(EventStreamSwitched, CategoryToast, r.toast(func(p envelope.Payload) notify.ToastSpec {
		msg := firstString(p, "", "message")
		channel := firstString(p, "", "channel_name", "channel_id")
		stream := firstString(p, "", "stream_name", "stream_id")
		if msg == "" && channel != "" && stream != "" {
			msg = fmt.Sprintf("%s switched to %s", channel, stream)
		}
		return notify.Info("Stream switched", msg)
	}))

	r.register(EventBackupCompleted, CategoryToast, r.toast(func(p envelope.Payload) notify.ToastSpec {
		msg := firstString(p, "", "message")
		if f := firstString(p, "", "filename", "file"); msg == "" && f != "" {
			msg = fmt.Sprintf("Saved %s", f)
		}
		return notify.Success("Backup completed", msg)
	}))

	r.register(EventSystemNotice, CategoryToast, r.toast(func(p envelope.Payload) notify.ToastSpec {
		spec := notify.Info(firstString(p, "System notice", "title"), firstString(p, "", "message"))
		spec.Level = notify.ParseLevel(firstString(p, "", "level", "severity"))
		return spec
	}))
}

func (r *Router) registerProgress() {
	tasks := []struct {
		eventType string
		task      progressTask
	}{
		{EventM3URefresh, progressTask{
			name:      "m3u_refresh",
			keyFields: []string{"account", "account_id"},
			render:    namedTitle("M3U refresh", "name", "account_name"),
			onSuccess: []models.ResourceKind{models.KindPlaylists, models.KindStreams, models.KindChannelGroups},
		}},
		{EventEPGRefresh, progressTask{
			name:      "epg_refresh",
			keyFields: []string{"source", "source_id"},
			render:    namedTitle("EPG refresh", "name", "source_name"),
			onSuccess: []models.ResourceKind{models.KindEPGSources, models.KindEPGData},
		}},
		{EventStreamRehash, progressTask{
			name:      "stream_rehash",
			keyFields: []string{"task_id"},
			render:    notify.Titled("Stream rehash"),
			onSuccess: []models.ResourceKind{models.KindStreams},
		}},
		{EventChannelImport, progressTask{
			name:      "channel_import",
			keyFields: []string{"task_id"},
			render:    notify.Titled("Channel import"),
			onSuccess: []models.ResourceKind{models.KindChannels},
		}},
		{EventEPGMatching, progressTask{
			name:      "epg_matching",
			keyFields: []string{"task_id"},
			render:    notify.Titled("EPG matching"),
			onSuccess: []models.ResourceKind{models.KindChannels},
		}},
		{EventLogoProcessing, progressTask{
			name:      "logo_processing",
			keyFields: []string{"task_id"},
			render:    notify.Titled("Logo processing"),
			onSuccess: []models.ResourceKind{models.KindLogos},
		}},
		{EventComskipStatus, progressTask{
			name:      "comskip",
			keyFields: []string{"recording_id"},
			render:    namedTitle("Commercial detection", "title", "program_title"),
			onSuccess: []models.ResourceKind{models.KindRecordings},
		}},
	}
	for _, t := range tasks {
		r.register(t.eventType, CategoryProgress, r.progressHandler(t.task))
	}
}

func (r *Router) registerPatches() {
	r.register(EventPlaylistStatus, CategoryPatch, r.patch(patchTarget{
		kind:    models.KindPlaylists,
		idField: "account",
		fields:  []string{"status", "last_message", "updated_at"},
	}))
	r.register(EventEPGSourceStatus, CategoryPatch, r.patch(patchTarget{
		kind:    models.KindEPGSources,
		idField: "source",
		fields:  []string{"status", "last_message", "updated_at"},
	}))
	r.register(EventStreamStats, CategoryPatch, r.patch(patchTarget{
		kind:    models.KindStreams,
		idField: "stream_id",
	}))
	r.register(EventChannelStats, CategoryPatch, r.patch(patchTarget{
		kind:    models.KindChannels,
		idField: "channel_id",
	}))
	r.register(EventRecordingStatus, CategoryPatch, r.patch(patchTarget{
		kind:    models.KindRecordings,
		idField: "recording_id",
		fields:  []string{"status", "updated_at"},
	}))
}
