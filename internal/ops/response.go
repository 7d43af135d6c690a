// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package ops

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/dispatchlink/internal/logging"
	"github.com/tomtom215/dispatchlink/internal/models"
)

func writeJSON(w http.ResponseWriter, status int, resp models.APIResponse) {
	resp.Metadata.Timestamp = time.Now().UTC()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Str("component", "ops").Msg("Failed to encode response")
	}
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, models.APIResponse{Status: "success", Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, models.APIResponse{
		Status: "error",
		Error:  &models.APIError{Code: code, Message: message},
	})
}
