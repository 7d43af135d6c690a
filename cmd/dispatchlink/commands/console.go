// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package commands

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/goccy/go-json"

	"github.com/tomtom215/dispatchlink/internal/eventtap"
	"github.com/tomtom215/dispatchlink/internal/notify"
)

// Console renders toasts and tapped events as terminal lines. It
// implements notify.Toaster.
type Console struct {
	mu   sync.Mutex
	out  io.Writer
	json bool
	now  func() time.Time

	// shown tracks keyed toasts so updates to dismissed keys are dropped.
	shown map[string]notify.ToastSpec

	levels map[notify.Level]*color.Color
	dim    *color.Color
}

// NewConsole writes to out. jsonLines switches to one JSON object per line.
func NewConsole(out io.Writer, jsonLines bool) *Console {
	return &Console{
		out:   out,
		json:  jsonLines,
		now:   time.Now,
		shown: make(map[string]notify.ToastSpec),
		levels: map[notify.Level]*color.Color{
			notify.LevelInfo:    color.New(color.FgCyan, color.Bold),
			notify.LevelSuccess: color.New(color.FgGreen, color.Bold),
			notify.LevelWarning: color.New(color.FgYellow, color.Bold),
			notify.LevelError:   color.New(color.FgRed, color.Bold),
		},
		dim: color.New(color.FgHiBlack),
	}
}

// Emit implements notify.Toaster.
func (c *Console) Emit(spec notify.ToastSpec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if spec.Key != "" {
		c.shown[spec.Key] = spec
	}
	c.writeToast("toast", spec)
}

// Update implements notify.Toaster.
func (c *Console) Update(key string, spec notify.ToastSpec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, ok := c.shown[key]
	if !ok {
		return
	}
	spec.Key = key
	c.shown[key] = spec
	if prev == spec {
		return
	}
	c.writeToast("update", spec)
}

// Dismiss implements notify.Toaster.
func (c *Console) Dismiss(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	spec, ok := c.shown[key]
	if !ok {
		return
	}
	delete(c.shown, key)
	if spec.Persistent {
		c.writeLine("dismiss", spec, c.dim.Sprintf("  %s dismissed", spec.Title))
	}
}

// Event prints one tapped event.
func (c *Console) Event(ev eventtap.Event, category string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.json {
		c.writeJSON(map[string]any{
			"kind":           "event",
			"time":           c.now().Format(time.RFC3339),
			"type":           ev.Type,
			"category":       category,
			"correlation_id": ev.CorrelationID,
			"payload":        ev.Payload,
		})
		return
	}
	fmt.Fprintln(c.out, c.dim.Sprintf("%s event %-28s %-8s %s",
		c.now().Format("15:04:05"), ev.Type, category, string(ev.Payload.Raw())))
}

func (c *Console) writeToast(op string, spec notify.ToastSpec) {
	level, ok := c.levels[spec.Level]
	if !ok {
		level = c.levels[notify.LevelInfo]
	}

	var b strings.Builder
	b.WriteString(level.Sprintf("%s %s", glyph(spec), spec.Title))
	if spec.Message != "" {
		b.WriteString(" ")
		b.WriteString(spec.Message)
	}
	if spec.Persistent && spec.Level == notify.LevelError {
		b.WriteString(c.dim.Sprint(" (POST /retry or restart to reconnect)"))
	}
	c.writeLine(op, spec, b.String())
}

func (c *Console) writeLine(op string, spec notify.ToastSpec, text string) {
	if c.json {
		c.writeJSON(map[string]any{
			"kind":    op,
			"time":    c.now().Format(time.RFC3339),
			"key":     spec.Key,
			"level":   spec.Level,
			"title":   spec.Title,
			"message": spec.Message,
			"loading": spec.Loading,
		})
		return
	}
	fmt.Fprintf(c.out, "%s %s\n", c.dim.Sprint(c.now().Format("15:04:05")), text)
}

func (c *Console) writeJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintln(c.out, string(b))
}

func glyph(spec notify.ToastSpec) string {
	if spec.Loading {
		return "…"
	}
	switch spec.Level {
	case notify.LevelSuccess:
		return "✔"
	case notify.LevelWarning:
		return "!"
	case notify.LevelError:
		return "✖"
	default:
		return "i"
	}
}
