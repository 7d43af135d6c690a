// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package api

import (
	"errors"
	"fmt"
)

// Common client errors
var (
	// ErrUnauthorized indicates the server rejected the bearer token
	ErrUnauthorized = errors.New("api: unauthorized")

	// ErrRateLimited indicates the server kept answering 429 after retries
	ErrRateLimited = errors.New("api: rate limited")

	// ErrCircuitOpen indicates requests are short-circuited after repeated failures
	ErrCircuitOpen = errors.New("api: circuit open")

	// ErrUnknownKind indicates a resource kind without a list endpoint
	ErrUnknownKind = errors.New("api: unknown resource kind")

	// ErrTooManyPages indicates a paginated listing did not terminate
	ErrTooManyPages = errors.New("api: pagination limit reached")

	// ErrForeignPage indicates a pagination link outside the configured server
	ErrForeignPage = errors.New("api: pagination link points to another server")
)

// StatusError is returned for non-2xx responses not covered by a sentinel.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("api: unexpected status %d", e.Code)
	}
	return fmt.Sprintf("api: unexpected status %d: %s", e.Code, e.Body)
}
