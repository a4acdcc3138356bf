// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package adminauth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifier_Allow(t *testing.T) {
	v := NewVerifier("admin", "hunter2")

	t.Run("correct credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/jobs", nil)
		req.SetBasicAuth("admin", "hunter2")
		assert.True(t, v.Allow(req))
	})

	t.Run("wrong password", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/jobs", nil)
		req.SetBasicAuth("admin", "wrong")
		assert.False(t, v.Allow(req))
	})

	t.Run("no credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/jobs", nil)
		assert.False(t, v.Allow(req))
	})
}

func TestVerifier_Allow_EmptyUsernameDisablesAuth(t *testing.T) {
	v := NewVerifier("", "")
	req := httptest.NewRequest(http.MethodGet, "/api/admin/jobs", nil)
	assert.True(t, v.Allow(req))
}

func TestVerifier_Middleware(t *testing.T) {
	v := NewVerifier("admin", "hunter2")
	handler := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("rejects missing credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/jobs", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
	})

	t.Run("allows valid credentials", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/jobs", nil)
		req.SetBasicAuth("admin", "hunter2")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
