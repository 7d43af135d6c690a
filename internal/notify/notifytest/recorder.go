// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

// Package notifytest provides a recording Toaster for tests.
package notifytest

import (
	"sync"

	"github.com/tomtom215/dispatchlink/internal/notify"
)

// Op names a recorded Toaster call.
type Op string

const (
	OpEmit    Op = "emit"
	OpUpdate  Op = "update"
	OpDismiss Op = "dismiss"
)

// Call is one recorded Toaster invocation.
type Call struct {
	Op   Op
	Key  string
	Spec notify.ToastSpec
}

// Recorder is a notify.Toaster that remembers every call. Safe for
// concurrent use.
type Recorder struct {
	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) Emit(spec notify.ToastSpec) {
	r.record(Call{Op: OpEmit, Key: spec.Key, Spec: spec})
}

func (r *Recorder) Update(key string, spec notify.ToastSpec) {
	r.record(Call{Op: OpUpdate, Key: key, Spec: spec})
}

func (r *Recorder) Dismiss(key string) {
	r.record(Call{Op: OpDismiss, Key: key})
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

// Calls returns a copy of all recorded calls in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Count returns how many calls of op were recorded.
func (r *Recorder) Count(op Op) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Emitted returns the specs of all Emit calls.
func (r *Recorder) Emitted() []notify.ToastSpec {
	var out []notify.ToastSpec
	for _, c := range r.Calls() {
		if c.Op == OpEmit {
			out = append(out, c.Spec)
		}
	}
	return out
}

// Last returns the most recent call.
func (r *Recorder) Last() (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return Call{}, false
	}
	return r.calls[len(r.calls)-1], true
}

// Reset forgets all recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}
