// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

// Package connection owns the realtime socket of an authenticated session.
//
// A Manager runs as a single event loop (Serve). Dial results, inbound
// frames, socket closes, reconnect timer fires and public commands are all
// posted to that loop, so state transitions and frame dispatch never
// interleave:
//
//	Disconnected -> Connecting -> Connected -> Disconnected -> Connecting ...
//	                                                       \-> Failed
//
// After a close the manager waits Backoff.Delay(AttemptCount) and redials.
// The MaxAttempts-th consecutive close without a successful open is
// terminal: the manager enters StateFailed and stays there until Connect or
// Retry is called. A dial error wrapping ErrCredentialRejected is terminal
// at once.
//
// Every socket is tagged with a generation number. Disconnect and redial
// bump the generation, so callbacks from a socket that was torn down on
// purpose are ignored instead of triggering a reconnect.
package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/dispatchlink/internal/logging"
	"github.com/tomtom215/dispatchlink/internal/metrics"
)

// Config controls reconnect policy.
type Config struct {
	// MaxAttempts is the number of consecutive closes tolerated before the
	// manager gives up. Default: 5
	MaxAttempts int

	Backoff Backoff

	// DialTimeout bounds a single dial including the handshake.
	// Default: 10s
	DialTimeout time.Duration

	// EventBuffer sizes the loop's inbound queue. Default: 64
	EventBuffer int
}

// DefaultConfig returns the production reconnect policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		Backoff:     DefaultBackoff(),
		DialTimeout: 10 * time.Second,
		EventBuffer: 64,
	}
}

type (
	commandEvent struct {
		fn   func()
		done chan struct{}
	}
	openedEvent struct {
		gen  uint64
		conn Conn
	}
	dialFailedEvent struct {
		gen uint64
		err error
	}
	frameEvent struct {
		gen  uint64
		data []byte
	}
	closedEvent struct {
		gen uint64
		err error
	}
	timerEvent struct {
		gen uint64
	}
)

// Manager maintains one realtime connection with bounded reconnects.
//
// Status subscribers run on the loop goroutine. They may call Status but
// must not call Connect, Disconnect, Retry, SetCredential or Send
// synchronously.
type Manager struct {
	cfg     Config
	dialer  Dialer
	handler FrameHandler
	clock   Clock

	events   chan any
	quit     chan struct{}
	quitOnce sync.Once

	// Owned by the loop goroutine.
	ctx        context.Context
	token      string
	state      State
	attempts   int
	lastErr    error
	banner     bool
	terminal   bool
	gen        uint64
	timerGen   uint64
	conn       Conn
	timer      Timer
	dialCancel context.CancelFunc

	snapMu   sync.RWMutex
	snapshot Status

	subMu   sync.Mutex
	subs    map[int]func(Status)
	nextSub int
}

// Option customises a Manager.
type Option func(*Manager)

// WithClock replaces the clock used for reconnect timers.
func WithClock(c Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// NewManager creates a Manager. Frames are delivered to handler; a nil
// handler discards them.
func NewManager(cfg Config, dialer Dialer, handler FrameHandler, opts ...Option) *Manager {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Backoff == (Backoff{}) {
		cfg.Backoff = def.Backoff
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = def.EventBuffer
	}
	if handler == nil {
		handler = FrameHandlerFunc(func(context.Context, []byte) {})
	}

	m := &Manager{
		cfg:     cfg,
		dialer:  dialer,
		handler: handler,
		clock:   SystemClock,
		events:  make(chan any, cfg.EventBuffer),
		quit:    make(chan struct{}),
		ctx:     context.Background(),
		subs:    make(map[int]func(Status)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Serve runs the event loop until ctx is cancelled. It implements
// suture.Service. On return the socket is closed and later commands fail
// with ErrStopped.
func (m *Manager) Serve(ctx context.Context) error {
	m.ctx = ctx
	logging.Debug().Str("component", "connection").Msg("Realtime manager loop started")

	for {
		select {
		case <-ctx.Done():
			m.teardown()
			m.quitOnce.Do(func() { close(m.quit) })
			m.drain()
			return ctx.Err()
		case ev := <-m.events:
			m.handle(ev)
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (m *Manager) String() string { return "realtime-connection" }

func (m *Manager) handle(ev any) {
	switch e := ev.(type) {
	case commandEvent:
		e.fn()
		close(e.done)
	case openedEvent:
		m.onOpened(e)
	case dialFailedEvent:
		if e.gen == m.gen && m.state == StateConnecting {
			m.dialCancel = nil
			m.onDrop(e.err)
		}
	case frameEvent:
		if e.gen == m.gen && m.state == StateConnected {
			m.dispatch(e.data)
		}
	case closedEvent:
		if e.gen == m.gen && m.state == StateConnected {
			m.conn = nil
			m.onDrop(e.err)
		}
	case timerEvent:
		if e.gen == m.timerGen && m.timer != nil {
			m.timer = nil
			if m.state == StateDisconnected && m.token != "" {
				m.dial()
			}
		}
	}
}

// drain releases sockets whose open raced with shutdown. Pending commands
// observe the closed quit channel and return ErrStopped.
func (m *Manager) drain() {
	for {
		select {
		case ev := <-m.events:
			if e, ok := ev.(openedEvent); ok {
				_ = e.conn.Close()
			}
		default:
			return
		}
	}
}

// do runs fn on the loop goroutine and waits for it to finish.
func (m *Manager) do(fn func()) error {
	done := make(chan struct{})
	select {
	case m.events <- commandEvent{fn: fn, done: done}:
	case <-m.quit:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-m.quit:
		return ErrStopped
	}
}

// post delivers an event from a socket or timer goroutine.
func (m *Manager) post(ev any) bool {
	select {
	case m.events <- ev:
		return true
	case <-m.quit:
		return false
	}
}

// Connect opens the connection. It is a no-op while connecting or
// connected. From StateFailed it acts as a manual retry.
func (m *Manager) Connect() error {
	var err error
	if doErr := m.do(func() { err = m.connect() }); doErr != nil {
		return doErr
	}
	return err
}

// Retry resets the attempt budget and connects.
func (m *Manager) Retry() error {
	var err error
	if doErr := m.do(func() {
		m.attempts = 0
		err = m.connect()
	}); doErr != nil {
		return doErr
	}
	return err
}

func (m *Manager) connect() error {
	if m.token == "" {
		return ErrUnauthenticated
	}
	if m.state == StateConnecting || m.state == StateConnected {
		return nil
	}
	if m.state == StateFailed {
		m.attempts = 0
		m.terminal = false
	}
	m.stopTimer()
	m.dial()
	return nil
}

// Disconnect closes the connection on purpose. No reconnect follows until
// the next Connect.
func (m *Manager) Disconnect() error {
	return m.do(func() {
		m.reset()
		m.publish()
		logging.Info().Str("component", "connection").Msg("Realtime connection closed by client")
	})
}

// SetCredential replaces the bearer token used for future dials. An empty
// token revokes authentication and tears the connection down immediately.
func (m *Manager) SetCredential(token string) error {
	return m.do(func() {
		m.token = token
		if token == "" && (m.state != StateDisconnected || m.timer != nil || m.attempts > 0) {
			m.reset()
			m.publish()
			logging.Info().Str("component", "connection").Msg("Credential revoked, realtime connection torn down")
		}
	})
}

// Send writes a raw frame to the open socket.
func (m *Manager) Send(data []byte) error {
	var conn Conn
	if err := m.do(func() {
		if m.state == StateConnected {
			conn = m.conn
		}
	}); err != nil {
		return err
	}
	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.WriteMessage(data); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	metrics.FramesSent.Inc()
	return nil
}

// Status returns the latest snapshot. Safe to call from any goroutine,
// including status subscribers.
func (m *Manager) Status() Status {
	m.snapMu.RLock()
	defer m.snapMu.RUnlock()
	return m.snapshot
}

// Subscribe registers fn to receive every status change. The returned
// function unregisters it.
func (m *Manager) Subscribe(fn func(Status)) (unsubscribe func()) {
	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn
	m.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subMu.Lock()
			delete(m.subs, id)
			m.subMu.Unlock()
		})
	}
}

// dial starts a new socket generation.
func (m *Manager) dial() {
	m.gen++
	m.closeConn()
	m.cancelDial()

	m.state = StateConnecting
	m.publish()

	gen, token := m.gen, m.token
	ctx, cancel := context.WithTimeout(m.ctx, m.cfg.DialTimeout)
	m.dialCancel = cancel

	logging.Debug().Str("component", "connection").Int("attempt", m.attempts).Msg("Dialing realtime endpoint")

	go func() {
		defer cancel()
		conn, err := m.dialer.Dial(ctx, token)
		if err != nil {
			m.post(dialFailedEvent{gen: gen, err: err})
			return
		}
		if !m.post(openedEvent{gen: gen, conn: conn}) {
			_ = conn.Close()
		}
	}()
}

func (m *Manager) onOpened(e openedEvent) {
	if e.gen != m.gen || m.state != StateConnecting {
		_ = e.conn.Close()
		return
	}
	m.dialCancel = nil
	m.conn = e.conn
	m.state = StateConnected
	m.attempts = 0
	m.lastErr = nil
	m.banner = false
	m.terminal = false
	metrics.ConnectionsOpened.Inc()
	m.publish()

	logging.Info().Str("component", "connection").Msg("Realtime connection established")

	go m.readLoop(e.gen, e.conn)
}

func (m *Manager) readLoop(gen uint64, conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			m.post(closedEvent{gen: gen, err: err})
			return
		}
		if !m.post(frameEvent{gen: gen, data: data}) {
			return
		}
	}
}

func (m *Manager) dispatch(data []byte) {
	metrics.FramesReceived.Inc()
	defer func() {
		if r := recover(); r != nil {
			logging.Error().Str("component", "connection").Interface("panic", r).Msg("Frame handler panicked")
		}
	}()
	m.handler.HandleFrame(m.ctx, data)
}

// onDrop applies the reconnect policy after a failed dial or a close.
func (m *Manager) onDrop(err error) {
	failedAttempt := m.attempts > 0
	m.lastErr = err
	m.state = StateDisconnected

	if errors.Is(err, ErrCredentialRejected) {
		m.state = StateFailed
		m.terminal = true
		m.banner = false
		metrics.TerminalFailures.Inc()
		m.publish()
		logging.Error().Str("component", "connection").Err(err).
			Msg("Realtime credential rejected, not reconnecting")
		return
	}

	if m.attempts+1 >= m.cfg.MaxAttempts {
		m.state = StateFailed
		m.terminal = true
		m.banner = false
		m.lastErr = fmt.Errorf("%w after %d consecutive failures: %w", ErrRetriesExhausted, m.attempts+1, err)
		metrics.TerminalFailures.Inc()
		m.publish()
		logging.Error().Str("component", "connection").Err(err).Int("attempts", m.attempts).
			Msg("Realtime connection failed, giving up until manual retry")
		return
	}

	if failedAttempt {
		m.banner = true
	}
	delay := m.cfg.Backoff.Delay(m.attempts)
	m.attempts++
	m.scheduleReconnect(delay)
	metrics.RecordReconnectScheduled(delay)
	m.publish()

	event := logging.Debug()
	if failedAttempt {
		event = logging.Warn()
	}
	event.Str("component", "connection").Err(err).Int("attempt", m.attempts).Dur("delay", delay).
		Msg("Realtime connection lost, reconnect scheduled")
}

func (m *Manager) scheduleReconnect(d time.Duration) {
	m.stopTimer()
	m.timerGen++
	gen := m.timerGen
	m.timer = m.clock.AfterFunc(d, func() {
		m.post(timerEvent{gen: gen})
	})
}

func (m *Manager) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerGen++
}

func (m *Manager) cancelDial() {
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
}

func (m *Manager) closeConn() {
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
}

// reset tears down everything and returns to the initial state.
func (m *Manager) reset() {
	m.stopTimer()
	m.cancelDial()
	m.gen++
	m.closeConn()
	m.state = StateDisconnected
	m.attempts = 0
	m.lastErr = nil
	m.banner = false
	m.terminal = false
}

func (m *Manager) teardown() {
	m.stopTimer()
	m.cancelDial()
	m.gen++
	m.closeConn()
	if m.state != StateFailed {
		m.state = StateDisconnected
	}
	m.publish()
}

// publish refreshes the snapshot and notifies subscribers.
func (m *Manager) publish() {
	st := Status{
		State:        m.state,
		AttemptCount: m.attempts,
		LastError:    m.lastErr,
		Banner:       m.banner,
		Terminal:     m.terminal,
	}
	m.snapMu.Lock()
	m.snapshot = st
	m.snapMu.Unlock()
	metrics.SetConnectionState(int(st.State))

	m.subMu.Lock()
	subs := make([]func(Status), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.subMu.Unlock()

	for _, fn := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logging.Error().Str("component", "connection").Interface("panic", r).Msg("Status subscriber panicked")
				}
			}()
			fn(st)
		}()
	}
}
