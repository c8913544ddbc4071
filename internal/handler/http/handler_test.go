package httphandler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/webitel/notification-relay/config"
	"github.com/webitel/notification-relay/infra/scheduler"
	"github.com/webitel/notification-relay/internal/adapter/emitter"
	"github.com/webitel/notification-relay/internal/domain/event"
	"github.com/webitel/notification-relay/internal/domain/registry"
	"github.com/webitel/notification-relay/internal/service"
)

type testServer struct {
	url      string
	presence *service.PresenceService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	cfg := config.Default()
	cfg.WS.SendTimeout = 20 * time.Millisecond

	hub := registry.NewHub()
	sched := scheduler.New(logger)
	em := emitter.New(hub, cfg.WS.SendTimeout, cfg.Dispatch.EmitConcurrency, logger)
	presence := service.NewPresenceService(cfg, hub, em, logger)
	dispatch, err := service.NewDispatchService(cfg, hub, em, sched, nil, logger)
	require.NoError(t, err)

	router := chi.NewRouter()
	NewHandler(dispatch, presence, logger).Routes(router)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = sched.Stop(ctx)
		hub.Shutdown()
	})
	return &testServer{url: srv.URL, presence: presence}
}

func (s *testServer) tenant(t *testing.T, key string) registry.Connector {
	t.Helper()
	conn := s.presence.Connect(context.Background(), registry.ConnectMetadata{Transport: "test"})
	require.True(t, s.presence.Register(conn, key))
	_, ok := conn.Next() // registered ack
	require.True(t, ok)
	return conn
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, s.url+path, bytes.NewBufferString(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestSendNotification_Announcement(t *testing.T) {
	s := newTestServer(t)
	a := s.tenant(t, "A")
	s.tenant(t, "B")

	status, body := s.do(t, http.MethodPost, "/send-notification", `{"title":"Hi","message":"There"}`)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "announcement", body["type"])
	assert.ElementsMatch(t, []any{"A", "B"}, body["sentTo"])
	assert.Equal(t, []any{}, body["notConnected"])
	assert.Equal(t, "Notification dispatch complete.", body["message"])

	ev, ok := a.Next()
	require.True(t, ok)
	assert.Equal(t, event.NameReceiveNotification, ev.GetName())
}

func TestSendNotification_ForApproval(t *testing.T) {
	s := newTestServer(t)
	s.tenant(t, "42")

	status, body := s.do(t, http.MethodPost, "/send-notification",
		`{"type":"for_approval","company_ids":[42,"Z"],"title":"Approve"}`)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, []any{"42"}, body["sentTo"])
	assert.Equal(t, []any{"Z"}, body["notConnected"])
}

func TestSendNotification_Errors(t *testing.T) {
	s := newTestServer(t)
	a := s.tenant(t, "A")

	status, body := s.do(t, http.MethodPost, "/send-notification", `{"type":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, `Unknown notification type: "bogus".`, body["message"])

	status, _ = s.do(t, http.MethodPost, "/send-notification", `{"type":"for_approval"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/send-notification", `{"type":"for_approval","company_ids":"A"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = s.do(t, http.MethodPost, "/send-notification", `{"delay_ms":-5}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = s.do(t, http.MethodPost, "/send-notification", `{"type":"announcement","delay_ms":18446744073710}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["message"], "out of range")

	assert.Zero(t, a.Pending())
}

func TestSendNotification_DeferredOutcome(t *testing.T) {
	s := newTestServer(t)
	s.tenant(t, "A")

	status, body := s.do(t, http.MethodPost, "/send-notification", `{"delay_ms":50}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["scheduled"])
	id := body["id"].(string)

	status, _ = s.do(t, http.MethodGet, "/dispatches/"+id, "")
	assert.Equal(t, http.StatusNotFound, status)

	require.Eventually(t, func() bool {
		status, body = s.do(t, http.MethodGet, "/dispatches/"+id, "")
		return status == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []any{"A"}, body["sentTo"])
}

func TestBroadcast(t *testing.T) {
	s := newTestServer(t)
	a := s.tenant(t, "A")

	status, body := s.do(t, http.MethodPost, "/broadcast", `{"title":"T","content":"C"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(1), body["connections"])

	ev, ok := a.Next()
	require.True(t, ok)
	assert.Equal(t, event.NameReceiveNotification, ev.GetName())
}

func TestPingAndStats(t *testing.T) {
	s := newTestServer(t)
	s.tenant(t, "A")
	s.tenant(t, "A")
	s.tenant(t, "B")
	s.presence.Connect(context.Background(), registry.ConnectMetadata{})

	status, body := s.do(t, http.MethodGet, "/ping", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, float64(3), body["connectedSockets"])

	status, body = s.do(t, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["totalTenants"])
	assert.Equal(t, float64(3), body["totalConnections"])
	assert.Equal(t, float64(4), body["liveConnections"])
	assert.Equal(t, map[string]any{"A": float64(2), "B": float64(1)}, body["tenants"])
	assert.Equal(t, map[string]any{"test": float64(3), "": float64(1)}, body["transports"])
}
