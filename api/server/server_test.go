package server

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/threshold-xks/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingRegistrar struct{}

func (pingRegistrar) RegisterRoutes(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("pong"))
	})
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := New(&api.HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      slog.New(slog.NewTextHandler(io.Discard, nil)),
		GracefulShutdownDuration: time.Second,
	}, pingRegistrar{})
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, h http.Handler, path string) (int, string) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	return rr.Code, string(body)
}

func TestServer_Routes(t *testing.T) {
	h := newTestServer(t).Handler()

	code, body := get(t, h, "/ping")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "pong", body)

	code, body = get(t, h, "/livez")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"alive"}`, body)

	code, _ = get(t, h, "/debug/pprof/")
	assert.Equal(t, http.StatusNotFound, code, "pprof is disabled by default")
}

func TestServer_Drain(t *testing.T) {
	h := newTestServer(t).Handler()

	code, body := get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ready"}`, body)

	_, body = get(t, h, "/drain")
	assert.JSONEq(t, `{"status":"draining"}`, body)
	_, body = get(t, h, "/drain")
	assert.JSONEq(t, `{"status":"already draining"}`, body)

	code, _ = get(t, h, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	_, body = get(t, h, "/undrain")
	assert.JSONEq(t, `{"status":"ready"}`, body)
	code, _ = get(t, h, "/readyz")
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_RunAndShutdown(t *testing.T) {
	srv := newTestServer(t)
	require.NoError(t, srv.RunInBackground())
	srv.Shutdown()

	_, err := New(&api.HTTPServerConfig{})
	assert.Error(t, err)
}
