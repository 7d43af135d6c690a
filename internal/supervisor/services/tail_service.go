// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package services

import (
	"context"
	"fmt"

	"github.com/tomtom215/dispatchlink/internal/eventtap"
)

// TapSubscriber is the subscription side of *eventtap.Tap.
type TapSubscriber interface {
	Subscribe(ctx context.Context) (<-chan eventtap.Event, error)
}

// TailService hands every tapped event to emit.
type TailService struct {
	tap  TapSubscriber
	emit func(eventtap.Event)
}

// NewTailService creates a TailService.
func NewTailService(tap TapSubscriber, emit func(eventtap.Event)) *TailService {
	return &TailService{tap: tap, emit: emit}
}

// Serve implements suture.Service.
func (s *TailService) Serve(ctx context.Context) error {
	events, err := s.tap.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe event tap: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return eventtap.ErrClosed
			}
			s.emit(ev)
		}
	}
}

func (s *TailService) String() string { return "event-tail" }
