// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package eventtap

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"

	"github.com/tomtom215/dispatchlink/internal/logging"
)

// loggerAdapter routes watermill's logs to the global zerolog logger.
type loggerAdapter struct {
	fields watermill.LogFields
}

func newLoggerAdapter() watermill.LoggerAdapter {
	return &loggerAdapter{}
}

func (l *loggerAdapter) Error(msg string, err error, fields watermill.LogFields) {
	l.emit(logging.Error().Err(err), msg, fields)
}

func (l *loggerAdapter) Info(msg string, fields watermill.LogFields) {
	l.emit(logging.Info(), msg, fields)
}

func (l *loggerAdapter) Debug(msg string, fields watermill.LogFields) {
	l.emit(logging.Debug(), msg, fields)
}

func (l *loggerAdapter) Trace(msg string, fields watermill.LogFields) {
	l.emit(logging.Trace(), msg, fields)
}

func (l *loggerAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &loggerAdapter{fields: l.fields.Add(fields)}
}

func (l *loggerAdapter) emit(e *zerolog.Event, msg string, fields watermill.LogFields) {
	e = e.Str("component", "eventtap")
	for k, v := range l.fields {
		e = e.Interface(k, v)
	}
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}
