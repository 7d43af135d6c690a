// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package notify

import (
	"strings"

	"github.com/tomtom215/dispatchlink/internal/envelope"
)

// Phase is the lifecycle stage of a correlated task.
type Phase string

const (
	PhaseStarted   Phase = "started"
	PhaseProgress  Phase = "progress"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
	PhaseSkipped   Phase = "skipped"
	PhaseBlocked   Phase = "blocked"
)

// Terminal reports whether no further frames are expected for the task.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseFailed, PhaseSkipped, PhaseBlocked:
		return true
	default:
		return false
	}
}

// Succeeded reports whether the task finished successfully.
func (p Phase) Succeeded() bool { return p == PhaseCompleted }

// Level returns the toast severity used to render p.
func (p Phase) Level() Level {
	switch p {
	case PhaseCompleted:
		return LevelSuccess
	case PhaseFailed:
		return LevelError
	case PhaseSkipped, PhaseBlocked:
		return LevelWarning
	default:
		return LevelInfo
	}
}

var statusPhases = map[string]Phase{
	"started":      PhaseStarted,
	"start":        PhaseStarted,
	"starting":     PhaseStarted,
	"initializing": PhaseStarted,
	"queued":       PhaseStarted,
	"pending":      PhaseStarted,
	"completed":    PhaseCompleted,
	"complete":     PhaseCompleted,
	"success":      PhaseCompleted,
	"done":         PhaseCompleted,
	"finished":     PhaseCompleted,
	"failed":       PhaseFailed,
	"failure":      PhaseFailed,
	"error":        PhaseFailed,
	"skipped":      PhaseSkipped,
	"skip":         PhaseSkipped,
	"blocked":      PhaseBlocked,
}

// PhaseOf infers the task phase from a progress payload.
//
// A recognised "status" or "state" string wins, then a non-empty "error".
// Multi-stage tasks name their current step in "action" or "stage"; for
// those a per-stage progress of 100 is not completion, only a recognised
// step name or status is. Single-stage tasks use "progress": 0 is started,
// 100 or more is completed, anything in between is progress.
func PhaseOf(p envelope.Payload) Phase {
	status := ""
	for _, field := range []string{"status", "state"} {
		if s := normalized(p.String(field)); s != "" {
			status = s
			break
		}
	}
	if ph, ok := statusPhases[status]; ok {
		return ph
	}
	if p.String("error") != "" {
		return PhaseFailed
	}
	if status != "" {
		return PhaseProgress
	}

	for _, field := range []string{"action", "stage"} {
		step := normalized(p.String(field))
		if step == "" {
			continue
		}
		if ph, ok := statusPhases[step]; ok {
			return ph
		}
		return PhaseProgress
	}

	if pct, ok := p.Float("progress"); ok {
		switch {
		case pct >= 100:
			return PhaseCompleted
		case pct <= 0:
			return PhaseStarted
		}
	}
	return PhaseProgress
}

func normalized(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
