// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package connection

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff describes the reconnect delay schedule:
//
//	Delay(n) = min(Initial * Multiplier^n, Max)
//
// The schedule is deterministic; no jitter is applied.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoff is 1s growing by 1.5x up to 30s.
func DefaultBackoff() Backoff {
	return Backoff{
		Initial:    time.Second,
		Max:        30 * time.Second,
		Multiplier: 1.5,
	}
}

// Delay returns the wait before reconnect attempt n (zero-based).
// Negative n is treated as 0.
func (b Backoff) Delay(n int) time.Duration {
	eb := b.exponential()
	d := eb.NextBackOff()
	for i := 0; i < n && d < eb.MaxInterval; i++ {
		d = eb.NextBackOff()
	}
	return d
}

func (b Backoff) exponential() *backoff.ExponentialBackOff {
	if b.Initial <= 0 {
		b.Initial = time.Second
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = b.Initial
	eb.MaxInterval = b.Max
	eb.Multiplier = b.Multiplier
	eb.RandomizationFactor = 0
	eb.MaxElapsedTime = 0
	eb.Reset()
	return eb
}

// Delay applies DefaultBackoff.
func Delay(n int) time.Duration {
	return DefaultBackoff().Delay(n)
}
