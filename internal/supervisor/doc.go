// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

/*
Package supervisor runs the long-lived parts of Dispatchlink under suture v4.

The tree has two layers for failure isolation:

	Root ("dispatchlink")
	├── Realtime ("realtime-layer")
	│   ├── connection.Manager        event loop of the realtime socket
	│   ├── services.SessionService   starts and tears down the session
	│   └── services.TailService      prints tapped events (run --tail)
	└── Ops ("ops-layer")
	    └── services.HTTPServerService

Crashed services are restarted with suture's backoff. Supervisor events are
logged as structured slog records, bridged to zerolog through
logging.NewSlogLogger and sutureslog.

# Usage

	tree, err := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddRealtimeService(manager)
	tree.AddRealtimeService(services.NewSessionService(sess, token))
	tree.AddOpsService(services.NewHTTPServerService(opsServer.NewHTTPServer(addr), 10*time.Second))
	return tree.Serve(ctx)
*/
package supervisor
