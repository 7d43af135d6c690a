// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package connection

import "context"

// Conn is one open realtime socket.
//
// ReadMessage blocks until a text frame arrives or the socket fails; it is
// only ever called from a single goroutine. WriteMessage and Close may be
// called concurrently with ReadMessage.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer opens sockets authenticated with a bearer token.
type Dialer interface {
	Dial(ctx context.Context, token string) (Conn, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, token string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, token string) (Conn, error) {
	return f(ctx, token)
}

// FrameHandler consumes inbound frames. It is called from the manager's loop
// goroutine, one frame at a time, in delivery order.
type FrameHandler interface {
	HandleFrame(ctx context.Context, data []byte)
}

// FrameHandlerFunc adapts a function to FrameHandler.
type FrameHandlerFunc func(ctx context.Context, data []byte)

func (f FrameHandlerFunc) HandleFrame(ctx context.Context, data []byte) {
	f(ctx, data)
}
