// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package notify

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tomtom215/dispatchlink/internal/envelope"
)

// Content is the rendered text of a notification.
type Content struct {
	Title   string
	Message string
}

// Renderer produces toast text from the latest raw payload of a task.
// It is invoked every time the notification is shown or updated.
type Renderer func(phase Phase, p envelope.Payload) Content

// ProgressText formats the numeric progress fields of a payload.
//
//	{"processed": 30, "total": 120} -> "30 of 120 (25%)"
//	{"progress": 42.5}              -> "43%"
//
// It returns "" when the payload carries no usable numbers.
func ProgressText(p envelope.Payload) string {
	processed, hasProcessed := p.Float("processed")
	total, hasTotal := p.Float("total")
	if hasProcessed && hasTotal && total > 0 {
		pct := math.Round(processed / total * 100)
		return fmt.Sprintf("%s of %s (%d%%)", trimFloat(processed), trimFloat(total), int(pct))
	}
	if pct, ok := p.Float("progress"); ok {
		return fmt.Sprintf("%d%%", int(math.Round(pct)))
	}
	return ""
}

// StageText returns the human-readable name of the current step.
func StageText(p envelope.Payload) string {
	for _, field := range []string{"action", "stage"} {
		if s := p.String(field); s != "" {
			return humanize(s)
		}
	}
	return ""
}

// Titled builds a Renderer with a fixed title and a message assembled from
// the payload: the server message or error when present, the current
// stage and the progress numbers.
func Titled(title string) Renderer {
	return func(phase Phase, p envelope.Payload) Content {
		return Content{Title: title, Message: DefaultMessage(phase, p)}
	}
}

// DefaultMessage assembles a message from the common progress fields.
func DefaultMessage(phase Phase, p envelope.Payload) string {
	switch phase {
	case PhaseFailed:
		if e := p.String("error"); e != "" {
			return e
		}
		if m := p.String("message"); m != "" {
			return m
		}
		return "Failed"
	case PhaseCompleted:
		if m := p.String("message"); m != "" {
			return m
		}
		return "Completed"
	case PhaseSkipped, PhaseBlocked:
		if m := p.String("message"); m != "" {
			return m
		}
		if r := p.String("reason"); r != "" {
			return r
		}
		return humanize(string(phase))
	}

	parts := make([]string, 0, 3)
	if m := p.String("message"); m != "" {
		parts = append(parts, m)
	} else if s := StageText(p); s != "" {
		parts = append(parts, s)
	}
	if pt := ProgressText(p); pt != "" {
		parts = append(parts, pt)
	}
	if len(parts) == 0 {
		if phase == PhaseStarted {
			return "Starting"
		}
		return "In progress"
	}
	return strings.Join(parts, " - ")
}

func trimFloat(f float64) string {
	if f == math.Trunc(f) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%.1f", f)
}

func humanize(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
