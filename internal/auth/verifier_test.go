package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func verifierFor(t *testing.T, status int) (*Verifier, *http.Request) {
	t.Helper()
	var captured *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		captured = r.Clone(context.Background())
		captured.Form = r.Form
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)

	v := NewVerifier(srv.URL)
	v.Verify(context.Background(), "alice", "tok123")
	return v, captured
}

func TestVerifyStatusMapping(t *testing.T) {
	cases := []struct {
		name     string
		httpCode int
		want     Status
	}{
		{"accepted", http.StatusOK, StatusValid},
		{"suspended", http.StatusForbidden, StatusSuspended},
		{"rejected", http.StatusUnauthorized, StatusInvalid},
		{"bad request", http.StatusBadRequest, StatusInvalid},
		{"server error", http.StatusInternalServerError, StatusTransportError},
		{"bad gateway", http.StatusBadGateway, StatusTransportError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.httpCode)
			}))
			defer srv.Close()

			got := NewVerifier(srv.URL).Verify(context.Background(), "alice", "tok")
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestVerifySendsFormCredentials(t *testing.T) {
	_, captured := verifierFor(t, http.StatusOK)
	require.NotNil(t, captured)
	assert.Equal(t, "/auth/verify_token", captured.URL.Path)
	assert.Equal(t, "alice", captured.Form.Get("username"))
	assert.Equal(t, "tok123", captured.Form.Get("token"))
}

func TestVerifyUnreachableServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	got := NewVerifier(srv.URL).Verify(context.Background(), "alice", "tok")
	assert.Equal(t, StatusTransportError, got)
}
