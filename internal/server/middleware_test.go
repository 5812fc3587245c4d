package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ringer-im/server/internal/auth"
	"github.com/ringer-im/server/internal/server/handlers"
)

type stubVerifier struct {
	status auth.Status
}

func (s stubVerifier) Verify(context.Context, string, string) auth.Status { return s.status }

func TestAuthMiddleware(t *testing.T) {
	cases := []struct {
		name       string
		username   string
		token      string
		status     auth.Status
		wantCode   int
		wantServed bool
	}{
		{"missing headers", "", "", auth.StatusValid, http.StatusBadRequest, false},
		{"valid", "alice", "tok", auth.StatusValid, http.StatusOK, true},
		{"invalid", "alice", "bad", auth.StatusInvalid, http.StatusUnauthorized, false},
		{"suspended", "alice", "tok", auth.StatusSuspended, http.StatusForbidden, false},
		{"auth unreachable", "alice", "tok", auth.StatusTransportError, http.StatusInternalServerError, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			served := false
			var identity string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				served = true
				identity = handlers.Identity(r.Context())
			})

			req := httptest.NewRequest(http.MethodGet, "/friends/v1/get_friends", nil)
			if tc.username != "" {
				req.Header.Set("username", tc.username)
			}
			if tc.token != "" {
				req.Header.Set("token", tc.token)
			}
			rec := httptest.NewRecorder()

			authMiddleware(stubVerifier{tc.status})(next).ServeHTTP(rec, req)

			assert.Equal(t, tc.wantCode, rec.Code)
			assert.Equal(t, tc.wantServed, served)
			if tc.wantServed {
				assert.Equal(t, tc.username, identity)
			}
		})
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	recoveryMiddleware(panicky).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight must not reach the handler")
	})

	req := httptest.NewRequest(http.MethodOptions, "/friends/v1/get_friends", nil)
	req.Header.Set("Origin", "https://app.ringer.im")
	rec := httptest.NewRecorder()

	corsMiddleware([]string{"https://app.ringer.im"})(next).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.ringer.im", rec.Header().Get("Access-Control-Allow-Origin"))
}
