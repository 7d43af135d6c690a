// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package ops

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/dispatchlink/internal/logging"
	"github.com/tomtom215/dispatchlink/internal/metrics"
)

// MiddlewareConfig holds CORS and rate limit settings for the ops surface.
type MiddlewareConfig struct {
	// CORSAllowedOrigins is empty by default, which rejects cross-origin
	// browsers entirely.
	CORSAllowedOrigins []string
	CORSMaxAge         int // seconds

	// RateLimitRequests per RateLimitWindow per client IP. Zero disables.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// DefaultMiddlewareConfig returns conservative defaults.
func DefaultMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSMaxAge:         86400,
		RateLimitRequests:  60,
		RateLimitWindow:    time.Minute,
	}
}

func corsHandler(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           cfg.CORSMaxAge,
	})
}

func rateLimit(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(
		cfg.RateLimitRequests,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
		}),
	)
}

// requestIDWithLogging tags each request with an X-Request-ID and a fresh
// correlation ID for log lines written while serving it.
func requestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		withID := chimiddleware.RequestID(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(chimiddleware.RequestIDHeader)
			if requestID == "" {
				requestID = logging.GenerateCorrelationID()
				r.Header.Set(chimiddleware.RequestIDHeader, requestID)
			}
			w.Header().Set(chimiddleware.RequestIDHeader, requestID)
			ctx := logging.ContextWithCorrelationID(r.Context(), requestID)
			withID.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

// accessLog counts every request by route and writes one debug line.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		metrics.OpsRequestsInFlight.Inc()
		defer metrics.OpsRequestsInFlight.Dec()

		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		metrics.RecordOpsRequest(r.Method, route, strconv.Itoa(status))

		logging.Ctx(r.Context()).Debug().
			Str("component", "ops").
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("Ops request")
	})
}
