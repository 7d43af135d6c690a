// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package connection

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated is returned by Connect while no credential is set.
	ErrUnauthenticated = errors.New("connection: no credential")

	// ErrNotConnected is returned by Send unless the connection is open.
	ErrNotConnected = errors.New("connection: not connected")

	// ErrRetriesExhausted is wrapped into Status.LastError when the manager
	// gives up reconnecting.
	ErrRetriesExhausted = errors.New("connection: reconnect attempts exhausted")

	// ErrCredentialRejected marks dial errors caused by the server refusing
	// the credential. The manager fails immediately instead of retrying.
	ErrCredentialRejected = errors.New("connection: credential rejected")

	// ErrStopped is returned by commands issued after Serve has returned.
	ErrStopped = errors.New("connection: manager stopped")
)

// State is the lifecycle state of the realtime connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Status is a point-in-time snapshot of the connection.
type Status struct {
	State State

	// AttemptCount is the number of reconnects scheduled since the last
	// successful open.
	AttemptCount int

	// LastError is the most recent transport error, nil after a successful
	// open.
	LastError error

	// Banner is set once a reconnect attempt has itself failed. UIs show a
	// transient "reconnecting" banner while it is true.
	Banner bool

	// Terminal is set in StateFailed. Only Connect or Retry leaves it.
	Terminal bool
}

// LastErrorString returns LastError as text, or "".
func (s Status) LastErrorString() string {
	if s.LastError == nil {
		return ""
	}
	return s.LastError.Error()
}
