// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

// Package api is the REST client the entity cache refetches through.
//
// Requests are rate limited with golang.org/x/time/rate, retried on HTTP
// 429 using the server's Retry-After hint, and guarded by a gobreaker
// circuit breaker. Authentication failures never trip the breaker.
package api
