package httpsrv

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/notification-relay/config"
)

func newTestServer(t *testing.T, origins ...string) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.HTTP.AllowedOrigins = origins

	s := NewServer(cfg, slog.New(slog.DiscardHandler))
	s.Router().Post("/send-notification", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv
}

func preflight(t *testing.T, url, origin string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodOptions, url+"/send-notification", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestCORS_PreflightAllowedOrigin(t *testing.T) {
	srv := newTestServer(t, "https://app.example.com")

	resp := preflight(t, srv.URL, "https://app.example.com")

	assert.Less(t, resp.StatusCode, 300)
	assert.Equal(t, "https://app.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
	assert.Equal(t, "Content-Type", resp.Header.Get("Access-Control-Allow-Headers"))
}

func TestCORS_DisallowedOrigin(t *testing.T) {
	srv := newTestServer(t, "https://app.example.com")

	resp := preflight(t, srv.URL, "https://evil.example.com")
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/send-notification", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://evil.example.com")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORS_Wildcard(t *testing.T) {
	srv := newTestServer(t, "*")

	resp := preflight(t, srv.URL, "https://anything.example.com")
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORS_PlainOptionsReachesRouter(t *testing.T) {
	srv := newTestServer(t, "*")

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/send-notification", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
