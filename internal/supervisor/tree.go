// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"
)

// TreeConfig holds configuration for the supervisor tree.
type TreeConfig struct {
	// FailureThreshold is the number of failures before a supervisor backs off.
	// Default: 5
	FailureThreshold float64

	// FailureDecay is the rate (in seconds) at which failure counts decay.
	// Default: 30
	FailureDecay float64

	// FailureBackoff is how long to wait once the threshold is crossed.
	// Default: 15s
	FailureBackoff time.Duration

	// ShutdownTimeout is how long each service gets to stop.
	// Default: 10s
	ShutdownTimeout time.Duration
}

// DefaultTreeConfig returns production defaults.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		FailureThreshold: 5.0,
		FailureDecay:     30.0,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// Tree is the process supervisor. Services are grouped in two layers so a
// crashing ops server never restarts the realtime connection:
//
//	dispatchlink
//	├── realtime-layer  (connection manager, session, event tail)
//	└── ops-layer       (ops HTTP server)
type Tree struct {
	root     *suture.Supervisor
	realtime *suture.Supervisor
	ops      *suture.Supervisor
	logger   *slog.Logger
	config   TreeConfig
}

// NewTree creates the supervisor hierarchy. Supervisor events are logged
// through logger via sutureslog.
func NewTree(logger *slog.Logger, config TreeConfig) (*Tree, error) {
	def := DefaultTreeConfig()
	if config.FailureThreshold == 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.FailureDecay == 0 {
		config.FailureDecay = def.FailureDecay
	}
	if config.FailureBackoff == 0 {
		config.FailureBackoff = def.FailureBackoff
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = def.ShutdownTimeout
	}

	handler := &sutureslog.Handler{Logger: logger}

	rootSpec := suture.Spec{
		EventHook:        handler.MustHook(),
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}
	childSpec := suture.Spec{
		FailureThreshold: config.FailureThreshold,
		FailureDecay:     config.FailureDecay,
		FailureBackoff:   config.FailureBackoff,
		Timeout:          config.ShutdownTimeout,
	}

	root := suture.New("dispatchlink", rootSpec)
	realtime := suture.New("realtime-layer", childSpec)
	ops := suture.New("ops-layer", childSpec)
	root.Add(realtime)
	root.Add(ops)

	return &Tree{
		root:     root,
		realtime: realtime,
		ops:      ops,
		logger:   logger,
		config:   config,
	}, nil
}

// Root returns the root supervisor.
func (t *Tree) Root() *suture.Supervisor {
	return t.root
}

// AddRealtimeService adds a service to the realtime layer. Services start
// in the order they are added.
func (t *Tree) AddRealtimeService(svc suture.Service) suture.ServiceToken {
	return t.realtime.Add(svc)
}

// AddOpsService adds a service to the ops layer.
func (t *Tree) AddOpsService(svc suture.Service) suture.ServiceToken {
	return t.ops.Add(svc)
}

// RemoveRealtimeService stops and removes a realtime service.
func (t *Tree) RemoveRealtimeService(token suture.ServiceToken) error {
	return t.realtime.Remove(token)
}

// Serve runs the tree until ctx is cancelled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground runs the tree in a goroutine.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that did not stop within the
// shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
