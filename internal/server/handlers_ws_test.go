package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialWS connects a websocket client to the test server as the given user.
func dialWS(t *testing.T, serverURL, userID, query string) (*ws.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
	if query != "" {
		url += "?" + query
	}
	header := http.Header{}
	if userID != "" {
		header.Set("X-User-Id", userID)
	}
	conn, resp, err := ws.DefaultDialer.Dial(url, header)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func TestWebSocket_RequiresUserHeader(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)

	_, resp, err := dialWS(t, ts.URL, "", "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestWebSocket_ConnectAndBroadcast(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)

	conn, _, err := dialWS(t, ts.URL, "u1", "event_id=e1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return srv.registry.Len() == 1
	}, 2*time.Second, 10*time.Millisecond)

	rec := doJSON(t, srv, http.MethodPost, "/api/broadcast",
		`{"type":"event_update","data":{"title":"keynote moved"},"target":{"eventId":"e1"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["delivered"])

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(payload, &msg))
	assert.Equal(t, "event_update", msg["type"])
	assert.NotEmpty(t, msg["id"])
	assert.NotEmpty(t, msg["timestamp"])
}

func TestWebSocket_SameUserReplacesConnection(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)

	first, _, err := dialWS(t, ts.URL, "u1", "")
	require.NoError(t, err)

	_, _, err = dialWS(t, ts.URL, "u1", "")
	require.NoError(t, err)

	// The first socket is closed by the eviction.
	require.NoError(t, first.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = first.ReadMessage()
	require.Error(t, err)

	require.Eventually(t, func() bool {
		return srv.registry.Len() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_DisconnectUnregisters(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)

	conn, _, err := dialWS(t, ts.URL, "u1", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return srv.registry.Len() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return srv.registry.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_PerIPLimit(t *testing.T) {
	srv, _ := newTestServer(t, withMaxConnectionsPerIP(1))
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)

	_, _, err := dialWS(t, ts.URL, "u1", "")
	require.NoError(t, err)

	_, resp, err := dialWS(t, ts.URL, "u2", "")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}
