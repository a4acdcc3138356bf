// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package adminauth verifies HTTP Basic Auth credentials on incoming
// requests to the coordinator's /api/admin/* routes.
package adminauth

import (
	"crypto/subtle"
	"net/http"
)

// Verifier checks the username and password on an incoming request against
// a fixed pair of admin credentials.
type Verifier struct {
	username string
	password string
}

// NewVerifier creates a verifier for the given admin credentials. An empty
// username disables admin auth entirely: Allow always returns true.
func NewVerifier(username, password string) *Verifier {
	return &Verifier{username: username, password: password}
}

// Allow reports whether req carries valid admin credentials.
func (v *Verifier) Allow(req *http.Request) bool {
	if v.username == "" {
		return true
	}

	user, pass, ok := req.BasicAuth()
	if !ok {
		return false
	}

	userMatch := subtle.ConstantTimeCompare([]byte(user), []byte(v.username)) == 1
	passMatch := subtle.ConstantTimeCompare([]byte(pass), []byte(v.password)) == 1
	return userMatch && passMatch
}

// Middleware wraps next, rejecting any request that fails Allow with a 401
// and a WWW-Authenticate challenge.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !v.Allow(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="movableq-admin"`)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
