// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/cubegate/internal/logging"
)

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to marshal JSON response")
		http.Error(w, `{"error":"InternalError","message":"failed to encode response","status_code":500}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Failed to write JSON response")
	}
}
