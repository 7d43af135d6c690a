// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package connection

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

var errRefused = errors.New("dial tcp: connection refused")

type statusLog struct {
	mu       sync.Mutex
	statuses []Status
}

func (l *statusLog) record(s Status) {
	l.mu.Lock()
	l.statuses = append(l.statuses, s)
	l.mu.Unlock()
}

func (l *statusLog) states() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]State, len(l.statuses))
	for i, s := range l.statuses {
		out[i] = s.State
	}
	return out
}

func (l *statusLog) anyBanner() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.statuses {
		if s.Banner {
			return true
		}
	}
	return false
}

func TestManager_InitialStatus(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	st := h.m.Status()
	if st.State != StateDisconnected || st.AttemptCount != 0 || st.LastError != nil || st.Banner || st.Terminal {
		t.Errorf("initial status = %+v", st)
	}
}

func TestManager_ConnectRequiresCredential(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := h.m.Connect(); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("Connect() without credential = %v, want ErrUnauthenticated", err)
	}
	if h.dialer.Dials() != 0 {
		t.Error("dial attempted without credential")
	}
}

func TestManager_ConnectOpens(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.connected(t)

	st := h.m.Status()
	if st.AttemptCount != 0 || st.LastError != nil {
		t.Errorf("status after open = %+v", st)
	}
	h.dialer.mu.Lock()
	token := h.dialer.tokens[0]
	h.dialer.mu.Unlock()
	if token != "token-abc" {
		t.Errorf("dialed with token %q", token)
	}

	// Connect while connected is a no-op.
	if err := h.m.Connect(); err != nil {
		t.Fatal(err)
	}
	if h.dialer.Dials() != 1 {
		t.Errorf("dials = %d, want 1", h.dialer.Dials())
	}
}

func TestManager_CloseSchedulesReconnectWithoutBanner(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	log := &statusLog{}
	h.m.Subscribe(log.record)

	conn := h.connected(t)
	conn.drop(errServerClosed)

	waitFor(t, "reconnect scheduled", func() bool {
		st := h.m.Status()
		return st.State == StateDisconnected && st.AttemptCount == 1
	})
	st := h.m.Status()
	if !errors.Is(st.LastError, errServerClosed) {
		t.Errorf("LastError = %v", st.LastError)
	}
	if st.Banner {
		t.Error("banner shown before any reconnect attempt")
	}
	if got := h.clock.Delays(); len(got) != 1 || got[0] != time.Second {
		t.Fatalf("scheduled delays = %v, want [1s]", got)
	}

	h.clock.Advance(999 * time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	if h.dialer.Dials() != 1 {
		t.Fatal("reconnect fired before its delay elapsed")
	}

	h.clock.Advance(time.Millisecond)
	h.waitState(t, StateConnected)
	if h.dialer.Dials() != 2 {
		t.Errorf("dials = %d, want 2", h.dialer.Dials())
	}

	want := []State{StateConnecting, StateConnected, StateDisconnected, StateConnecting, StateConnected}
	if got := log.states(); !reflect.DeepEqual(got, want) {
		t.Errorf("state sequence = %v, want %v", got, want)
	}
	if log.anyBanner() {
		t.Error("banner surfaced during a single recovered drop")
	}
}

func TestManager_SuccessfulOpenResetsAttempts(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	conn := h.connected(t)

	h.dialer.setFail(errRefused)
	conn.drop(errServerClosed)
	waitFor(t, "attempt 1", func() bool { return h.m.Status().AttemptCount == 1 })

	h.clock.Advance(time.Second)
	waitFor(t, "attempt 2", func() bool { return h.m.Status().AttemptCount == 2 })
	if !h.m.Status().Banner {
		t.Error("banner not shown after a failed reconnect attempt")
	}

	h.dialer.setFail(nil)
	h.clock.Advance(1500 * time.Millisecond)
	st := h.waitState(t, StateConnected)
	if st.AttemptCount != 0 || st.LastError != nil || st.Banner {
		t.Errorf("status after recovery = %+v", st)
	}
}

func TestManager_FiveConsecutiveClosesFail(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	conn := h.connected(t)
	h.dialer.setFail(errRefused)

	conn.drop(errServerClosed)
	waitFor(t, "attempt 1", func() bool { return h.m.Status().AttemptCount == 1 })

	for attempt := 1; attempt <= 3; attempt++ {
		h.clock.Advance(Delay(attempt - 1))
		next := attempt + 1
		waitFor(t, "next attempt", func() bool { return h.m.Status().AttemptCount == next })
		if h.m.Status().State == StateFailed {
			t.Fatalf("failed early after %d closes", attempt+1)
		}
	}

	h.clock.Advance(Delay(3))
	st := h.waitState(t, StateFailed)

	if !st.Terminal {
		t.Error("Terminal not set in StateFailed")
	}
	if st.Banner {
		t.Error("transient banner should give way to the terminal error")
	}
	if !errors.Is(st.LastError, ErrRetriesExhausted) || !errors.Is(st.LastError, errRefused) {
		t.Errorf("LastError = %v", st.LastError)
	}

	wantDelays := []time.Duration{time.Second, 1500 * time.Millisecond, 2250 * time.Millisecond, 3375 * time.Millisecond}
	if got := h.clock.Delays(); !reflect.DeepEqual(got, wantDelays) {
		t.Errorf("delays = %v, want %v", got, wantDelays)
	}
	if h.clock.Pending() != 0 {
		t.Error("timer still pending after terminal failure")
	}

	dials := h.dialer.Dials()
	h.clock.Advance(time.Hour)
	time.Sleep(10 * time.Millisecond)
	if h.dialer.Dials() != dials {
		t.Error("manager kept dialing after terminal failure")
	}
}

func TestManager_ConnectFromFailedIsManualRetry(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := h.m.SetCredential("tok"); err != nil {
		t.Fatal(err)
	}
	h.dialer.setFail(errRefused)
	if err := h.m.Connect(); err != nil {
		t.Fatal(err)
	}

	for i := 1; i <= 4; i++ {
		n := i
		waitFor(t, "attempt", func() bool { return h.m.Status().AttemptCount == n })
		h.clock.Advance(Delay(n - 1))
	}
	h.waitState(t, StateFailed)

	h.dialer.setFail(nil)
	if err := h.m.Connect(); err != nil {
		t.Fatal(err)
	}
	st := h.waitState(t, StateConnected)
	if st.Terminal || st.AttemptCount != 0 {
		t.Errorf("status after manual retry = %+v", st)
	}
}

func TestManager_ColdStartFailureNotSurfaced(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.dialer.setFail(errRefused)
	if err := h.m.SetCredential("tok"); err != nil {
		t.Fatal(err)
	}
	if err := h.m.Connect(); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "first drop", func() bool { return h.m.Status().AttemptCount == 1 })
	st := h.m.Status()
	if st.Banner {
		t.Error("cold-start failure surfaced as banner")
	}
	if !errors.Is(st.LastError, errRefused) {
		t.Errorf("LastError = %v, want recorded dial error", st.LastError)
	}
}

func TestManager_RejectedCredentialFailsAtOnce(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.dialer.setFail(fmt.Errorf("handshake (HTTP 401): %w", ErrCredentialRejected))
	if err := h.m.SetCredential("stale"); err != nil {
		t.Fatal(err)
	}
	if err := h.m.Connect(); err != nil {
		t.Fatal(err)
	}

	st := h.waitState(t, StateFailed)
	if !st.Terminal || st.Banner {
		t.Errorf("status = %+v", st)
	}
	if !errors.Is(st.LastError, ErrCredentialRejected) || errors.Is(st.LastError, ErrRetriesExhausted) {
		t.Errorf("LastError = %v", st.LastError)
	}
	if h.clock.Pending() != 0 {
		t.Error("reconnect scheduled after credential rejection")
	}

	h.clock.Advance(time.Hour)
	time.Sleep(10 * time.Millisecond)
	if n := h.dialer.Dials(); n != 1 {
		t.Errorf("dials = %d, want 1", n)
	}

	h.dialer.setFail(nil)
	if err := h.m.Retry(); err != nil {
		t.Fatal(err)
	}
	h.waitState(t, StateConnected)
}

func TestManager_DisconnectCancelsPendingReconnect(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	conn := h.connected(t)
	conn.drop(errServerClosed)
	waitFor(t, "reconnect scheduled", func() bool { return h.m.Status().AttemptCount == 1 })

	if err := h.m.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if h.clock.Pending() != 0 {
		t.Error("reconnect timer not cancelled")
	}

	h.clock.Advance(time.Minute)
	time.Sleep(10 * time.Millisecond)

	st := h.m.Status()
	if st.State != StateDisconnected || st.AttemptCount != 0 {
		t.Errorf("status after Disconnect = %+v", st)
	}
	if h.dialer.Dials() != 1 {
		t.Errorf("dials = %d, want 1 (no reconnect after Disconnect)", h.dialer.Dials())
	}

	if err := h.m.Connect(); err != nil {
		t.Fatal(err)
	}
	h.waitState(t, StateConnected)
}

func TestManager_DisconnectIgnoresOwnClose(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	conn := h.connected(t)

	if err := h.m.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if !conn.isClosed() {
		t.Error("socket not closed on Disconnect")
	}
	time.Sleep(10 * time.Millisecond)
	if st := h.m.Status(); st.State != StateDisconnected || st.AttemptCount != 0 {
		t.Errorf("intentional close triggered reconnect policy: %+v", st)
	}
	if h.clock.Pending() != 0 {
		t.Error("reconnect scheduled after intentional close")
	}
}

func TestManager_RevokeCredentialTearsDown(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	conn := h.connected(t)

	if err := h.m.SetCredential(""); err != nil {
		t.Fatal(err)
	}
	if !conn.isClosed() {
		t.Error("socket survived credential revocation")
	}
	if st := h.m.Status(); st.State != StateDisconnected {
		t.Errorf("state = %v", st.State)
	}
	if err := h.m.Connect(); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Connect() after revoke = %v", err)
	}
}

func TestManager_Send(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	if err := h.m.Send([]byte(`{"type":"ping"}`)); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send() while disconnected = %v", err)
	}

	conn := h.connected(t)
	if err := h.m.Send([]byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("Send() = %v", err)
	}
	if got := conn.Written(); len(got) != 1 || string(got[0]) != `{"type":"ping"}` {
		t.Errorf("written = %q", got)
	}
}

func TestManager_FramesDispatchedInOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	conn := h.connected(t)

	for _, f := range []string{"one", "two", "three"} {
		conn.frames <- []byte(f)
	}
	waitFor(t, "three frames", func() bool { return len(h.frames.Frames()) == 3 })

	if got := h.frames.Frames(); !reflect.DeepEqual(got, []string{"one", "two", "three"}) {
		t.Errorf("frames = %v", got)
	}
}

func TestManager_HandlerPanicDoesNotKillLoop(t *testing.T) {
	t.Parallel()

	dialer := &fakeDialer{}
	var mu sync.Mutex
	var seen []string
	handler := FrameHandlerFunc(func(_ context.Context, data []byte) {
		if string(data) == "boom" {
			panic("handler exploded")
		}
		mu.Lock()
		seen = append(seen, string(data))
		mu.Unlock()
	})
	m := NewManager(DefaultConfig(), dialer, handler, WithClock(&manualClock{}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()
	defer func() { cancel(); <-done }()

	_ = m.SetCredential("t")
	_ = m.Connect()
	waitFor(t, "connected", func() bool { return m.Status().State == StateConnected })

	conn := dialer.lastConn(t)
	conn.frames <- []byte("boom")
	conn.frames <- []byte("after")

	waitFor(t, "frame after panic", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0] == "after"
	})
	if m.Status().State != StateConnected {
		t.Error("connection affected by handler panic")
	}
}

func TestManager_Unsubscribe(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	log := &statusLog{}
	unsubscribe := h.m.Subscribe(log.record)
	unsubscribe()
	unsubscribe()

	h.connected(t)
	if n := len(log.states()); n != 0 {
		t.Errorf("unsubscribed callback received %d updates", n)
	}
}

func TestManager_StoppedRejectsCommands(t *testing.T) {
	t.Parallel()

	m := NewManager(DefaultConfig(), &fakeDialer{}, nil, WithClock(&manualClock{}))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx) }()

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Serve() = %v, want context.Canceled", err)
	}
	if err := m.Connect(); !errors.Is(err, ErrStopped) {
		t.Errorf("Connect() after stop = %v, want ErrStopped", err)
	}
}
