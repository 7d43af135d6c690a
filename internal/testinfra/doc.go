// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

// Package testinfra provides an in-process fake of the IPTV admin server for
// end-to-end tests.
//
// The fake serves the realtime socket at /ws/ and the paginated REST list
// endpoints for every models.ResourceKind. Both accept only the tokens it
// was created with, so tests can exercise auth failures.
//
//	srv := testinfra.NewServer(t, testinfra.WithTokens("tok"))
//	srv.Seed(models.KindChannels, map[string]any{"id": 1, "name": "News"})
//
//	// point the client at srv.URL, then
//	srv.WaitForClients(t, 1)
//	srv.Push(t, "channels_updated", nil)
//
//	srv.DropClients() // simulate a network drop
package testinfra
