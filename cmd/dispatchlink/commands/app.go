// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package commands

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/tomtom215/dispatchlink/internal/api"
	"github.com/tomtom215/dispatchlink/internal/config"
	"github.com/tomtom215/dispatchlink/internal/connection"
	"github.com/tomtom215/dispatchlink/internal/eventtap"
	"github.com/tomtom215/dispatchlink/internal/logging"
	"github.com/tomtom215/dispatchlink/internal/models"
	"github.com/tomtom215/dispatchlink/internal/notify"
	"github.com/tomtom215/dispatchlink/internal/ops"
	"github.com/tomtom215/dispatchlink/internal/router"
	"github.com/tomtom215/dispatchlink/internal/session"
	"github.com/tomtom215/dispatchlink/internal/store"
	"github.com/tomtom215/dispatchlink/internal/supervisor"
	"github.com/tomtom215/dispatchlink/internal/supervisor/services"
	"github.com/tomtom215/dispatchlink/internal/transport"
)

// ErrNoToken is returned when neither the config nor the flags carry an
// access token.
var ErrNoToken = errors.New("no access token: set DISPATCH_TOKEN, server.token or --token")

// AppOptions are the run-time choices that are not part of the config.
type AppOptions struct {
	// Tail receives every dispatched event when set.
	Tail func(ev eventtap.Event, category string)
}

// App is the assembled client.
type App struct {
	Config     *config.Config
	API        *api.Client
	Store      *store.Store
	Correlator *notify.Correlator
	Router     *router.Router
	Manager    *connection.Manager
	Session    *session.Session
	Tap        *eventtap.Tap
	Ops        *ops.Server
	Tree       *supervisor.Tree
}

// NewApp wires every component for cfg, rendering toasts through toaster.
func NewApp(cfg *config.Config, toaster notify.Toaster, opts AppOptions) (*App, error) {
	if cfg.Server.Token == "" {
		return nil, ErrNoToken
	}
	a := &App{Config: cfg}

	apiBase, err := httpBase(cfg.Server.URL)
	if err != nil {
		return nil, err
	}
	a.API, err = api.NewClient(api.Config{
		BaseURL:   apiBase,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		Burst:     cfg.API.Burst,
	})
	if err != nil {
		return nil, fmt.Errorf("api client: %w", err)
	}

	a.Store = store.New(a.API, store.WithOnChange(func(kind models.ResourceKind) {
		logging.Debug().Str("component", "store").Str("kind", kind.String()).Msg("Cache changed")
	}))
	a.Correlator = notify.NewCorrelator(toaster, notify.WithAutoClose(cfg.Notifications.AutoClose))

	routerOpts := []router.Option{router.WithRefetchTimeout(cfg.API.Timeout)}
	if opts.Tail != nil {
		a.Tap = eventtap.New(eventtap.Config{})
		routerOpts = append(routerOpts, router.WithTap(a.Tap))
	}
	a.Router = router.New(a.Store, toaster, a.Correlator, routerOpts...)

	dialer, err := transport.NewDialer(transport.Config{
		BaseURL:          cfg.Server.URL,
		Path:             cfg.Realtime.Path,
		HandshakeTimeout: cfg.Realtime.HandshakeTimeout,
		PingInterval:     cfg.Realtime.PingInterval,
		PongWait:         cfg.Realtime.PongWait,
		WriteTimeout:     cfg.Realtime.WriteTimeout,
		ReadLimit:        cfg.Realtime.ReadLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("realtime dialer: %w", err)
	}
	a.Manager = connection.NewManager(connection.Config{
		MaxAttempts: cfg.Realtime.MaxAttempts,
		Backoff: connection.Backoff{
			Initial:    cfg.Realtime.InitialDelay,
			Max:        cfg.Realtime.MaxDelay,
			Multiplier: cfg.Realtime.Multiplier,
		},
		DialTimeout: cfg.Realtime.HandshakeTimeout,
	}, dialer, a.Router)

	a.Session = session.New(session.Deps{
		Conn:       a.Manager,
		Toaster:    toaster,
		Correlator: a.Correlator,
		Store:      a.Store,
		API:        a.API,
	})

	a.Tree, err = supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}
	a.Tree.AddRealtimeService(a.Manager)
	a.Tree.AddRealtimeService(services.NewSessionService(a.Session, cfg.Server.Token))
	if opts.Tail != nil {
		tail := opts.Tail
		a.Tree.AddRealtimeService(services.NewTailService(a.Tap, func(ev eventtap.Event) {
			cat, _ := a.Router.CategoryOf(ev.Type)
			tail(ev, cat.String())
		}))
	}

	if cfg.Ops.Enabled {
		mw := ops.DefaultMiddlewareConfig()
		mw.CORSAllowedOrigins = cfg.Ops.CORSOrigins
		mw.RateLimitRequests = cfg.Ops.RateLimit
		a.Ops = ops.NewServer(ops.Deps{
			Conn:          a.Manager,
			Session:       a.Session,
			Notifications: a.Correlator,
		}, mw)
		a.Tree.AddOpsService(services.NewHTTPServerService(a.Ops.NewHTTPServer(cfg.Ops.Listen), 10*time.Second))
	}
	return a, nil
}

// Run serves the supervisor tree until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	logging.Info().
		Str("server", logging.SanitizeURL(a.Config.Server.URL)).
		Bool("ops", a.Ops != nil).
		Bool("tail", a.Tap != nil).
		Msg("Starting dispatchlink")

	var runErr error
	for err := range a.Tree.ServeBackground(ctx) {
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			logging.Error().Err(err).Msg("Supervisor tree error")
			runErr = err
		}
	}

	unstopped, _ := a.Tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
	}

	a.Router.Wait()
	if a.Tap != nil {
		if err := a.Tap.Close(); err != nil {
			logging.Warn().Err(err).Msg("Event tap close failed")
		}
	}
	logging.Info().Msg("dispatchlink stopped")
	return runErr
}

// httpBase maps the server URL onto the scheme the REST API uses.
func httpBase(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	return u.String(), nil
}
