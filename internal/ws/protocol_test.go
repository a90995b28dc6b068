package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/mealmatch/internal/ws"
)

type wireEnvelope struct {
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload"`
}

func serve(t *testing.T, p *ws.Protocol) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		poolID := strings.TrimPrefix(r.URL.Path, "/ws/")
		_ = p.Handle(w, r, poolID, nil)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, poolID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + poolID
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func read(t *testing.T, c *websocket.Conn) wireEnvelope {
	t.Helper()
	var env wireEnvelope
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, c.ReadJSON(&env))
	return env
}

func requireStatus(t *testing.T, c *websocket.Conn, code int) wireEnvelope {
	t.Helper()
	env := read(t, c)
	require.Equal(t, "CONNECTION_CODE", env.Action)
	require.EqualValues(t, code, env.Payload["status_code"])
	return env
}

func requireSilent(t *testing.T, c *websocket.Conn) {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := c.ReadMessage()
	require.Error(t, err)
}

func TestConnectAndPoolMessage(t *testing.T) {
	m := ws.NewManager()
	srv := serve(t, ws.NewProtocol("test", m))

	a1 := dial(t, srv, "1")
	env := requireStatus(t, a1, 202)
	require.Equal(t, "you have connected", env.Payload["message"])
	a2 := dial(t, srv, "1")
	requireStatus(t, a2, 202)
	b := dial(t, srv, "2")
	requireStatus(t, b, 202)

	require.NoError(t, a1.WriteJSON(map[string]any{"action": "POOL_MESSAGE", "payload": map[string]any{"message": "hello"}}))
	for _, c := range []*websocket.Conn{a1, a2} {
		env := read(t, c)
		require.Equal(t, "POOL_MESSAGE", env.Action)
		require.Equal(t, "hello", env.Payload["message"])
	}
	requireSilent(t, b)
}

func TestGlobalMessageReachesEveryPool(t *testing.T) {
	m := ws.NewManager()
	srv := serve(t, ws.NewProtocol("test", m))

	a := dial(t, srv, "1")
	requireStatus(t, a, 202)
	b := dial(t, srv, "2")
	requireStatus(t, b, 202)

	require.NoError(t, a.WriteJSON(map[string]any{"action": "GLOBAL_MESSAGE", "payload": map[string]any{"message": "all"}}))
	for _, c := range []*websocket.Conn{a, b} {
		env := read(t, c)
		require.Equal(t, "GLOBAL_MESSAGE", env.Action)
		require.Equal(t, "all", env.Payload["message"])
	}
}

func TestInvalidFramesKeepConnectionOpen(t *testing.T) {
	m := ws.NewManager()
	srv := serve(t, ws.NewProtocol("test", m))
	c := dial(t, srv, "1")
	requireStatus(t, c, 202)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte("not json")))
	env := requireStatus(t, c, 400)
	require.Equal(t, "data is not JSON serializable", env.Payload["message"])

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"action":"DANCE","payload":{}}`)))
	requireStatus(t, c, 404)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`[1,2,3]`)))
	requireStatus(t, c, 404)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"action":"CONNECTION_CODE","payload":null}`)))
	requireStatus(t, c, 501)

	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(`{"action":"POOL_MESSAGE","payload":{}}`)))
	env = requireStatus(t, c, 400)
	require.Equal(t, "no message provided", env.Payload["message"])

	require.Equal(t, 1, m.ConnectionCount("1"))
}

func TestDeniedConnectionReceivesStatusThenClose(t *testing.T) {
	m := ws.NewManager()
	deny := ws.PermissionFunc(func(context.Context, *ws.AdmissionContext) error { return ws.ErrUnauthorized })
	srv := serve(t, ws.NewProtocol("test", m, ws.WithPermissions([]ws.Permission{deny})))

	c := dial(t, srv, "1")
	requireStatus(t, c, 401)

	_, _, err := c.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	require.Zero(t, m.TotalConnections())
}

func TestClientDisconnectLeavesPool(t *testing.T) {
	m := ws.NewManager()
	srv := serve(t, ws.NewProtocol("test", m))

	a := dial(t, srv, "1")
	requireStatus(t, a, 202)
	b := dial(t, srv, "1")
	requireStatus(t, b, 202)
	require.Equal(t, 2, m.ConnectionCount("1"))

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool { return m.ConnectionCount("1") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.WriteJSON(map[string]any{"action": "POOL_MESSAGE", "payload": map[string]any{"message": "still here"}}))
	require.Equal(t, "still here", read(t, b).Payload["message"])

	require.NoError(t, b.Close())
	require.Eventually(t, func() bool { return len(m.Pools()) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServerSideDisconnectPool(t *testing.T) {
	m := ws.NewManager()
	srv := serve(t, ws.NewProtocol("test", m))
	c := dial(t, srv, "9")
	requireStatus(t, c, 202)

	require.Equal(t, 1, m.DisconnectPool("9", ws.StatusClosing.Envelope()))
	requireStatus(t, c, 200)
	_, _, err := c.ReadMessage()
	require.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestProtocolsDoNotShareTraffic(t *testing.T) {
	gate := ws.PermissionFunc(func(_ context.Context, ac *ws.AdmissionContext) error {
		if ac.AccessToken != "good" {
			return ws.ErrUnauthorized
		}
		return nil
	})
	sessions := ws.NewManager()
	open := ws.NewManager()
	gated := ws.NewProtocol("session", sessions, ws.WithPermissions([]ws.Permission{gate}))
	chatty := ws.NewProtocol("chat", open)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/session/"):
			_ = gated.Handle(w, r, strings.TrimPrefix(r.URL.Path, "/session/"), nil)
		case strings.HasPrefix(r.URL.Path, "/chat/"):
			_ = chatty.Handle(w, r, strings.TrimPrefix(r.URL.Path, "/chat/"), nil)
		}
	}))
	t.Cleanup(srv.Close)
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	insider, _, err := websocket.DefaultDialer.Dial(base+"/session/5?token=good", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = insider.Close() })
	requireStatus(t, insider, 202)

	outsider, _, err := websocket.DefaultDialer.Dial(base+"/chat/5", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = outsider.Close() })
	requireStatus(t, outsider, 202)

	require.Equal(t, 1, sessions.ConnectionCount("5"))
	require.Equal(t, 1, open.ConnectionCount("5"))

	require.NoError(t, insider.WriteJSON(map[string]any{"action": "POOL_MESSAGE", "payload": map[string]any{"message": "secret"}}))
	require.Equal(t, "secret", read(t, insider).Payload["message"])
	requireSilent(t, outsider)

	require.NoError(t, outsider.WriteJSON(map[string]any{"action": "GLOBAL_MESSAGE", "payload": map[string]any{"message": "hello all"}}))
	require.Equal(t, "hello all", read(t, outsider).Payload["message"])
	requireSilent(t, insider)
}

func TestManagerServesOneProtocol(t *testing.T) {
	m := ws.NewManager()
	ws.NewProtocol("session", m)
	require.Equal(t, "session", m.Name())

	// rebinding under the same name is fine, another protocol is not
	require.NotPanics(t, func() { ws.NewProtocol("session", m) })
	require.Panics(t, func() { ws.NewProtocol("chat", m) })
}
