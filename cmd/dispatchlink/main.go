// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

// Package main is the entry point for the dispatchlink CLI.
//
// dispatchlink holds a realtime connection to an IPTV admin server, keeps
// an entity cache in step with the pushed events and renders the server's
// notifications and task progress as console toasts.
//
// # Example Usage
//
//	export DISPATCH_URL=https://tv.example.com
//	export DISPATCH_TOKEN=eyJhbGciOi...
//	dispatchlink run --tail
//
// With the operator endpoints:
//
//	OPS_ENABLED=true OPS_LISTEN=127.0.0.1:9464 dispatchlink run
//	curl -X POST http://127.0.0.1:9464/retry
package main

import (
	"fmt"
	"os"

	"github.com/tomtom215/dispatchlink/cmd/dispatchlink/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
