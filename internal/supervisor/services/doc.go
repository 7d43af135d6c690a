// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

// Package services adapts Dispatchlink components to suture's
// Serve(ctx) error lifecycle.
//
//   - HTTPServerService: ListenAndServe with graceful Shutdown
//   - SessionService: session Start on serve, Teardown on stop
//   - TailService: prints events observed on the event tap
//
// connection.Manager implements suture.Service itself and needs no wrapper.
package services
