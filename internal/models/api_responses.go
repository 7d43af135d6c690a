// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package models

import "time"

// APIResponse is the envelope used by every ops HTTP endpoint.
//
//	{"status":"success","data":{...},"metadata":{"timestamp":"..."}}
//	{"status":"error","error":{"code":"NOT_CONNECTED","message":"..."},"metadata":{...}}
type APIResponse struct {
	Status   string    `json:"status"`
	Data     any       `json:"data,omitempty"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

// Metadata carries the response generation time.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

// APIError describes a failed ops request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ConnectionStatus is the JSON view of the realtime connection.
type ConnectionStatus struct {
	State        string `json:"state"`
	AttemptCount int    `json:"attempt_count"`
	LastError    string `json:"last_error,omitempty"`
	Banner       bool   `json:"banner"`
	Terminal     bool   `json:"terminal"`
}

// NotificationView is the JSON view of a live progress notification.
type NotificationView struct {
	Key     string `json:"key"`
	Phase   string `json:"phase"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Connection    ConnectionStatus   `json:"connection"`
	Notifications []NotificationView `json:"notifications"`
	Session       string             `json:"session,omitempty"`
}
