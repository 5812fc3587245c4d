package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ringer-im/server/internal/config"
	"github.com/ringer-im/server/internal/store"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.AllowedOrigins = []string{"*"}
	srv := New(cfg, store.New(nil), "test")
	t.Cleanup(func() { srv.dispatcher.Close() })
	return srv
}

// Requests without credential headers must reach the open routes. The
// handlers' own validation errors prove the auth middleware did not
// intercept first.
func TestOpenRoutesSkipAuth(t *testing.T) {
	srv := testServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/gifs/v1/search", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "search query parameter is required")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/notifications/v1/unregister", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "push-token is required")
}

func TestProtectedRoutesRequireCredentials(t *testing.T) {
	srv := testServer(t)

	for _, route := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/friends/v1/get_friends"},
		{http.MethodPost, "/notifications/v1/register"},
		{http.MethodGet, "/users/v1/search"},
	} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(route.method, route.path, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, route.path)
		assert.Contains(t, rec.Body.String(), "missing credentials", route.path)
	}
}
