// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package api wires the coordinator onto the HTTP surface described by
// the external interfaces: job submission and dispatch, admin listings,
// and raw artifact download.
package api

import (
	"encoding/json"
	"net/http"

	coordinatorerrors "github.com/jontk/movableq/pkg/errors"
	"github.com/jontk/movableq/pkg/logging"
)

// envelope is the uniform response shape every JSON endpoint returns.
type envelope struct {
	Result  string      `json:"result"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, envelope{Result: "ok", Data: data})
}

// writeError maps a coordinator error onto its HTTP status per the
// error table and logs internal errors with the request's logger.
func writeError(w http.ResponseWriter, r *http.Request, logger logging.Logger, err error) {
	status := coordinatorerrors.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		logging.LogError(logger.WithContext(r.Context()), err, "http_request",
			"remote_addr", clientIP(r),
			"path", r.URL.Path,
		)
	}
	writeJSON(w, status, envelope{Result: "error", Message: err.Error()})
}

func decodeJSONBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
