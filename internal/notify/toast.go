// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

// Package notify turns server events into user-visible notifications.
//
// Two shapes exist. One-shot toasts are emitted once and forgotten. Correlated
// notifications track a long-running server task across many frames and are
// updated in place under a stable key by the Correlator until the task
// reaches a terminal phase.
//
// Rendering is delegated to a Toaster supplied by the host (a browser shell,
// the console, a test recorder).
package notify

import "time"

// Level is the visual severity of a toast.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// ParseLevel maps free-form server severities onto a Level, defaulting to
// LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "success", "ok":
		return LevelSuccess
	case "warning", "warn":
		return LevelWarning
	case "error", "danger", "critical", "failed":
		return LevelError
	default:
		return LevelInfo
	}
}

// ToastSpec describes what a toast should look like.
type ToastSpec struct {
	// Key identifies an updatable toast. Empty for one-shot toasts.
	Key string

	Level   Level
	Title   string
	Message string

	// Persistent toasts stay until updated or dismissed.
	Persistent bool

	// Dismissible toasts show a close control.
	Dismissible bool

	// AutoClose hides the toast after the duration. Zero disables.
	AutoClose time.Duration

	// Loading shows an activity indicator.
	Loading bool
}

// Toaster is the notification surface. Implementations must not call back
// into the Correlator synchronously.
type Toaster interface {
	// Emit shows a new toast. A non-empty spec.Key makes it updatable.
	Emit(spec ToastSpec)

	// Update replaces the content of the toast shown under key.
	Update(key string, spec ToastSpec)

	// Dismiss removes the toast shown under key, if any.
	Dismiss(key string)
}

// DefaultAutoClose is used when no auto-close duration is configured.
const DefaultAutoClose = 5 * time.Second

// Info returns a one-shot informational toast spec.
func Info(title, message string) ToastSpec {
	return oneShot(LevelInfo, title, message)
}

// Success returns a one-shot success toast spec.
func Success(title, message string) ToastSpec {
	return oneShot(LevelSuccess, title, message)
}

// Warning returns a one-shot warning toast spec.
func Warning(title, message string) ToastSpec {
	return oneShot(LevelWarning, title, message)
}

// Failure returns a one-shot error toast spec.
func Failure(title, message string) ToastSpec {
	return oneShot(LevelError, title, message)
}

func oneShot(level Level, title, message string) ToastSpec {
	return ToastSpec{
		Level:       level,
		Title:       title,
		Message:     message,
		Dismissible: true,
		AutoClose:   DefaultAutoClose,
	}
}
