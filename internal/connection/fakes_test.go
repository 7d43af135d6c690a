// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package connection

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"
)

// manualClock fires timers only when advanced.
type manualClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
	delays []time.Duration
}

type manualTimer struct {
	clock   *manualClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	c.delays = append(c.delays, d)
	return t
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward and runs due callbacks in deadline order.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		t.f()
	}
}

func (c *manualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func (c *manualClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

var errServerClosed = errors.New("server closed connection")

// fakeConn is a socket controlled by the test.
type fakeConn struct {
	frames    chan []byte
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.closed:
		if c.closeErr != nil {
			return nil, c.closeErr
		}
		return nil, errors.New("use of closed connection")
	}
}

func (c *fakeConn) WriteMessage(data []byte) error {
	select {
	case <-c.closed:
		return errors.New("write on closed connection")
	default:
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.written = append(c.written, append([]byte(nil), data...))
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// drop simulates the server closing the socket.
func (c *fakeConn) drop(err error) {
	c.closeErr = err
	c.Close()
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) Written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.written...)
}

// fakeDialer hands out fakeConns, or fails while failWith is set.
type fakeDialer struct {
	mu       sync.Mutex
	failWith error
	conns    []*fakeConn
	tokens   []string
	dials    int
}

func (d *fakeDialer) Dial(_ context.Context, token string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	d.tokens = append(d.tokens, token)
	if d.failWith != nil {
		return nil, d.failWith
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) setFail(err error) {
	d.mu.Lock()
	d.failWith = err
	d.mu.Unlock()
}

func (d *fakeDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) lastConn(t *testing.T) *fakeConn {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		t.Fatal("no connection dialed")
	}
	return d.conns[len(d.conns)-1]
}

// frameRecorder collects dispatched frames.
type frameRecorder struct {
	mu     sync.Mutex
	frames []string
}

func (r *frameRecorder) HandleFrame(_ context.Context, data []byte) {
	r.mu.Lock()
	r.frames = append(r.frames, string(data))
	r.mu.Unlock()
}

func (r *frameRecorder) Frames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.frames...)
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type managerHarness struct {
	m       *Manager
	clock   *manualClock
	dialer  *fakeDialer
	frames  *frameRecorder
	cancel  context.CancelFunc
	stopped chan error
}

func newHarness(t *testing.T) *managerHarness {
	t.Helper()
	h := &managerHarness{
		clock:   &manualClock{},
		dialer:  &fakeDialer{},
		frames:  &frameRecorder{},
		stopped: make(chan error, 1),
	}
	h.m = NewManager(DefaultConfig(), h.dialer, h.frames, WithClock(h.clock))

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.stopped <- h.m.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-h.stopped
	})
	return h
}

func (h *managerHarness) waitState(t *testing.T, want State) Status {
	t.Helper()
	waitFor(t, "state "+want.String(), func() bool { return h.m.Status().State == want })
	return h.m.Status()
}

// connected authenticates, connects and waits for the socket to open.
func (h *managerHarness) connected(t *testing.T) *fakeConn {
	t.Helper()
	if err := h.m.SetCredential("token-abc"); err != nil {
		t.Fatal(err)
	}
	if err := h.m.Connect(); err != nil {
		t.Fatalf("Connect() = %v", err)
	}
	h.waitState(t, StateConnected)
	return h.dialer.lastConn(t)
}
