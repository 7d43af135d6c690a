// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

// Package session ties the realtime connection to one authenticated session.
//
// Start hands the bearer token to the connection manager and the REST client,
// watches the token's exp claim, and turns connection status changes into
// user-visible toasts. Teardown closes the socket, revokes the credential and
// clears every live notification and cached entity, so nothing from the
// previous session leaks into the next one.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/dispatchlink/internal/connection"
	"github.com/tomtom215/dispatchlink/internal/logging"
	"github.com/tomtom215/dispatchlink/internal/notify"
)

// Toast keys owned by the session.
const (
	FailureToastKey   = "connection-failed"
	ReconnectToastKey = "connection-reconnecting"
)

var (
	// ErrEmptyToken is returned by Start and Rotate for an empty token.
	ErrEmptyToken = errors.New("session: empty token")

	// ErrTokenExpired is returned when the token's exp claim has passed.
	ErrTokenExpired = errors.New("session: token expired")

	// ErrActive is returned by Start while a session is running.
	ErrActive = errors.New("session: already active")

	// ErrInactive is returned by Rotate when no session is running.
	ErrInactive = errors.New("session: not active")
)

// Conn is the part of connection.Manager the session drives.
type Conn interface {
	SetCredential(token string) error
	Connect() error
	Retry() error
	Disconnect() error
	Status() connection.Status
	Subscribe(fn func(connection.Status)) (unsubscribe func())
}

// Resetter drops per-session state.
type Resetter interface {
	Reset()
}

// TokenSink receives the bearer token for REST calls.
type TokenSink interface {
	SetToken(token string)
}

// Deps are the collaborators a Session coordinates. Conn and Toaster are
// required.
type Deps struct {
	Conn       Conn
	Toaster    notify.Toaster
	Correlator Resetter
	Store      Resetter
	API        TokenSink
}

// Option customises a Session.
type Option func(*Session)

// WithClock replaces the clock used for the expiry timer.
func WithClock(c connection.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithNow overrides the wall clock used to compare token expiry.
func WithNow(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session is the lifecycle of one authenticated user.
type Session struct {
	deps  Deps
	clock connection.Clock
	now   func() time.Time

	mu          sync.Mutex
	active      bool
	id          string
	gen         uint64
	expiresAt   time.Time
	expiry      connection.Timer
	unsubscribe func()

	// Guarded separately: status callbacks run on the manager loop while
	// mu may be held by a command waiting on that loop.
	statusMu    sync.Mutex
	outage      bool
	failedShown bool
	// bannerAttempt is the attempt count shown by the reconnect toast, 0
	// while no reconnect toast is up.
	bannerAttempt int
}

// New creates an inactive Session.
func New(deps Deps, opts ...Option) *Session {
	s := &Session{
		deps:  deps,
		clock: connection.SystemClock,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins a session with token and opens the realtime connection.
func (s *Session) Start(token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	exp, hasExp := TokenExpiry(token)
	if hasExp && !exp.After(s.now()) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, exp.Format(time.RFC3339))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return ErrActive
	}

	s.gen++
	s.id = logging.GenerateSessionID()
	s.active = true
	s.resetOutage()

	if s.deps.API != nil {
		s.deps.API.SetToken(token)
	}
	if err := s.deps.Conn.SetCredential(token); err != nil {
		s.active = false
		return fmt.Errorf("set credential: %w", err)
	}
	s.unsubscribe = s.deps.Conn.Subscribe(s.onStatus)
	s.watchExpiry(exp, hasExp)

	logging.Info().Str("component", "session").Str("session_id", s.id).
		Str("token", logging.SanitizeToken(token)).
		Msg("Session started")

	if err := s.deps.Conn.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

// Rotate replaces the token of a running session. The open socket keeps
// running; the new token is used from the next dial.
func (s *Session) Rotate(token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	exp, hasExp := TokenExpiry(token)
	if hasExp && !exp.After(s.now()) {
		return fmt.Errorf("%w at %s", ErrTokenExpired, exp.Format(time.RFC3339))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ErrInactive
	}
	if s.deps.API != nil {
		s.deps.API.SetToken(token)
	}
	if err := s.deps.Conn.SetCredential(token); err != nil {
		return fmt.Errorf("set credential: %w", err)
	}
	s.gen++
	s.watchExpiry(exp, hasExp)
	logging.Info().Str("component", "session").Str("session_id", s.id).Msg("Session token rotated")
	return nil
}

// Retry clears a terminal failure and reconnects with a fresh attempt budget.
func (s *Session) Retry() error {
	s.mu.Lock()
	active := s.active
	s.mu.Unlock()
	if !active {
		return ErrInactive
	}
	return s.deps.Conn.Retry()
}

// Teardown ends the session. It is safe to call more than once.
func (s *Session) Teardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teardownLocked("logout")
}

func (s *Session) teardownLocked(reason string) error {
	if !s.active {
		return nil
	}
	s.active = false
	s.gen++
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
	s.expiresAt = time.Time{}
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}

	var errs []error
	if err := s.deps.Conn.Disconnect(); err != nil && !errors.Is(err, connection.ErrStopped) {
		errs = append(errs, fmt.Errorf("disconnect: %w", err))
	}
	if err := s.deps.Conn.SetCredential(""); err != nil && !errors.Is(err, connection.ErrStopped) {
		errs = append(errs, fmt.Errorf("revoke credential: %w", err))
	}
	if s.deps.API != nil {
		s.deps.API.SetToken("")
	}
	if s.deps.Correlator != nil {
		s.deps.Correlator.Reset()
	}
	if s.deps.Store != nil {
		s.deps.Store.Reset()
	}

	s.statusMu.Lock()
	s.dismissBannerLocked()
	if s.failedShown {
		s.deps.Toaster.Dismiss(FailureToastKey)
	}
	s.outage = false
	s.failedShown = false
	s.statusMu.Unlock()

	logging.Info().Str("component", "session").Str("session_id", s.id).Str("reason", reason).
		Msg("Session ended")
	return errors.Join(errs...)
}

// Active reports whether a session is running.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// ID returns the current session ID, or "" when inactive.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return ""
	}
	return s.id
}

// ExpiresAt returns the token expiry, zero when unknown.
func (s *Session) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// Context returns parent tagged with the session ID for logging.
func (s *Session) Context(parent context.Context) context.Context {
	if id := s.ID(); id != "" {
		return logging.ContextWithSessionID(parent, id)
	}
	return parent
}

func (s *Session) watchExpiry(exp time.Time, ok bool) {
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
	s.expiresAt = time.Time{}
	if !ok {
		return
	}
	s.expiresAt = exp
	gen := s.gen
	s.expiry = s.clock.AfterFunc(exp.Sub(s.now()), func() { s.expire(gen) })
}

func (s *Session) expire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.gen != gen {
		return
	}
	s.expiry = nil
	logging.Warn().Str("component", "session").Str("session_id", s.id).
		Msg("Session token expired, revoking realtime credential")
	if err := s.teardownLocked("token_expired"); err != nil {
		logging.Error().Err(err).Str("component", "session").Msg("Session teardown after expiry failed")
	}
	s.deps.Toaster.Emit(notify.Warning("Session expired", "Sign in again to resume live updates."))
}

// onStatus runs on the manager loop. It only talks to the toaster.
func (s *Session) onStatus(st connection.Status) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	switch {
	case st.State == connection.StateFailed && st.Terminal:
		s.outage = true
		s.dismissBannerLocked()
		if s.failedShown {
			return
		}
		s.failedShown = true
		spec := notify.ToastSpec{
			Key:        FailureToastKey,
			Level:      notify.LevelError,
			Title:      "Live updates unavailable",
			Message:    failureMessage(st),
			Persistent: true,
		}
		if errors.Is(st.LastError, connection.ErrCredentialRejected) {
			spec.Title = "Sign-in required"
			spec.Message = "The server rejected the session token. Sign in again to resume live updates."
		}
		s.deps.Toaster.Emit(spec)
		logging.Error().Str("component", "session").Str("last_error", st.LastErrorString()).
			Msg("Realtime connection failed permanently")

	case st.Banner:
		s.outage = true
		s.showBannerLocked(st.AttemptCount)

	case st.State == connection.StateConnected:
		s.dismissBannerLocked()
		if s.failedShown {
			s.deps.Toaster.Dismiss(FailureToastKey)
		}
		if s.outage {
			s.deps.Toaster.Emit(notify.Success("Connection restored", "Live updates resumed."))
			logging.Info().Str("component", "session").Msg("Realtime connection restored")
		}
		s.outage = false
		s.failedShown = false
	}
}

func (s *Session) showBannerLocked(attempt int) {
	if attempt < 1 {
		attempt = 1
	}
	if attempt == s.bannerAttempt {
		return
	}
	spec := notify.ToastSpec{
		Key:        ReconnectToastKey,
		Level:      notify.LevelWarning,
		Title:      "Reconnecting",
		Message:    fmt.Sprintf("Connection lost, reconnect attempt %d.", attempt),
		Persistent: true,
		Loading:    true,
	}
	if s.bannerAttempt == 0 {
		s.deps.Toaster.Emit(spec)
	} else {
		s.deps.Toaster.Update(ReconnectToastKey, spec)
	}
	s.bannerAttempt = attempt
}

func (s *Session) dismissBannerLocked() {
	if s.bannerAttempt == 0 {
		return
	}
	s.deps.Toaster.Dismiss(ReconnectToastKey)
	s.bannerAttempt = 0
}

func (s *Session) resetOutage() {
	s.statusMu.Lock()
	s.outage = false
	s.failedShown = false
	s.bannerAttempt = 0
	s.statusMu.Unlock()
}

func failureMessage(st connection.Status) string {
	msg := "Could not reach the server. Retry to reconnect."
	if e := st.LastErrorString(); e != "" {
		msg = "Could not reach the server (" + e + "). Retry to reconnect."
	}
	return msg
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// Opaque tokens and tokens without exp report false.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
