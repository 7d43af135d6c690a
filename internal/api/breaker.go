// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package api

import (
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/dispatchlink/internal/logging"
	"github.com/tomtom215/dispatchlink/internal/metrics"
)

// breaker wraps REST calls in a circuit breaker.
//
// It opens when at least 60% of 10 or more requests in a one minute window
// fail, and probes again after 30s. Authentication failures do not count
// as failures: they are the caller's problem, not the server's.
type breaker struct {
	cb   *gobreaker.CircuitBreaker[[]byte]
	name string
}

func newBreaker(name string) *breaker {
	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			if ratio >= 0.6 {
				logging.Warn().Str("breaker", name).Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", ratio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUnauthorized)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", stateToString(from)).Str("to", stateToString(to)).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, stateToString(from), stateToString(to)).Inc()
		},
	})

	return &breaker{cb: cb, name: name}
}

func (b *breaker) execute(fn func() ([]byte, error)) ([]byte, error) {
	body, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return body, nil
}

// State returns the breaker state name.
func (b *breaker) State() string {
	return stateToString(b.cb.State())
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
