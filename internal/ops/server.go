// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

// Package ops serves the operator HTTP surface of a headless client:
//
//	GET  /healthz  liveness, 503 once the connection has failed for good
//	GET  /status   connection snapshot and live progress notifications
//	POST /retry    manual reconnect after a terminal failure
//	GET  /metrics  Prometheus exposition
package ops

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/dispatchlink/internal/connection"
	"github.com/tomtom215/dispatchlink/internal/logging"
	"github.com/tomtom215/dispatchlink/internal/models"
	"github.com/tomtom215/dispatchlink/internal/notify"
	"github.com/tomtom215/dispatchlink/internal/session"
)

// StatusSource reports the realtime connection status.
type StatusSource interface {
	Status() connection.Status
}

// Session is the part of session.Session the ops surface uses.
type Session interface {
	ID() string
	Retry() error
}

// Notifications lists live progress notifications.
type Notifications interface {
	Snapshot() []notify.Notification
}

// Deps are the collaborators behind the endpoints. Notifications may be nil.
type Deps struct {
	Conn          StatusSource
	Session       Session
	Notifications Notifications
}

// Server builds the ops handler.
type Server struct {
	deps Deps
	mw   MiddlewareConfig
}

// NewServer creates a Server.
func NewServer(deps Deps, mw MiddlewareConfig) *Server {
	return &Server{deps: deps, mw: mw}
}

// Handler returns the chi router serving every ops endpoint.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(s.mw))
	r.Use(securityHeaders)
	r.Use(accessLog)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(rateLimit(s.mw))
		r.Get("/status", s.status)
		r.Post("/retry", s.retry)
	})

	return r
}

// NewHTTPServer wraps Handler in an http.Server listening on addr.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	st := s.deps.Conn.Status()
	body := map[string]string{"state": st.State.String()}
	if st.State == connection.StateFailed {
		writeSuccess(w, http.StatusServiceUnavailable, body)
		return
	}
	writeSuccess(w, http.StatusOK, body)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	st := s.deps.Conn.Status()
	resp := models.StatusResponse{
		Connection: models.ConnectionStatus{
			State:        st.State.String(),
			AttemptCount: st.AttemptCount,
			LastError:    st.LastErrorString(),
			Banner:       st.Banner,
			Terminal:     st.Terminal,
		},
		Notifications: []models.NotificationView{},
	}
	if s.deps.Session != nil {
		resp.Session = s.deps.Session.ID()
	}
	if s.deps.Notifications != nil {
		for _, n := range s.deps.Notifications.Snapshot() {
			c := n.Render()
			resp.Notifications = append(resp.Notifications, models.NotificationView{
				Key:     n.Key,
				Phase:   string(n.Phase),
				Title:   c.Title,
				Message: c.Message,
			})
		}
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (s *Server) retry(w http.ResponseWriter, r *http.Request) {
	if s.deps.Session == nil {
		writeError(w, http.StatusConflict, "NO_SESSION", "No active session")
		return
	}
	err := s.deps.Session.Retry()
	switch {
	case err == nil:
		logging.Ctx(r.Context()).Info().Str("component", "ops").Msg("Manual reconnect requested")
		writeSuccess(w, http.StatusAccepted, map[string]string{"state": s.deps.Conn.Status().State.String()})
	case errors.Is(err, session.ErrInactive):
		writeError(w, http.StatusConflict, "NO_SESSION", "No active session")
	case errors.Is(err, connection.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "NO_CREDENTIAL", "Session has no credential")
	case errors.Is(err, connection.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "STOPPED", "Connection manager stopped")
	default:
		logging.Ctx(r.Context()).Error().Err(err).Str("component", "ops").Msg("Manual reconnect failed")
		writeError(w, http.StatusInternalServerError, "RETRY_FAILED", err.Error())
	}
}
