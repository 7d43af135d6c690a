// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/dispatchlink/internal/logging"
	"github.com/tomtom215/dispatchlink/internal/session"
)

// Session is the lifecycle subset of *session.Session.
type Session interface {
	Start(token string) error
	Teardown() error
}

// SessionService starts a session when supervised and tears it down when
// the supervisor stops it. Credential errors are permanent and stop the
// service from being restarted.
type SessionService struct {
	session Session
	token   string
}

// NewSessionService creates a service that runs s with token.
func NewSessionService(s Session, token string) *SessionService {
	return &SessionService{session: s, token: token}
}

// Serve implements suture.Service.
func (s *SessionService) Serve(ctx context.Context) error {
	err := s.session.Start(s.token)
	switch {
	case err == nil, errors.Is(err, session.ErrActive):
	case errors.Is(err, session.ErrEmptyToken), errors.Is(err, session.ErrTokenExpired):
		logging.Error().Err(err).Str("component", "session").Msg("Cannot start session")
		return fmt.Errorf("%w: %w", suture.ErrDoNotRestart, err)
	default:
		// A failed Connect leaves the session registered.
		logging.Warn().Err(err).Str("component", "session").Msg("Session started without a connection")
	}

	<-ctx.Done()
	if err := s.session.Teardown(); err != nil {
		logging.Warn().Err(err).Str("component", "session").Msg("Session teardown incomplete")
	}
	return ctx.Err()
}

func (s *SessionService) String() string { return "session" }
