package collab

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/coscribe/coscribe/server/internal/document/service"
	"github.com/coscribe/coscribe/server/pkg/auth"
)

func startWSServer(t *testing.T, opts WSOptions) (*httptest.Server, *Gateway) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	g := newTestGateway(service.NewMemoryService())
	r := gin.New()
	r.GET("/ws", g.ServeWS(opts))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, g
}

func wsURL(srv *httptest.Server, query string) string {
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if query != "" {
		u += "?" + query
	}
	return u
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func send(t *testing.T, c *websocket.Conn, m Message) {
	t.Helper()
	require.NoError(t, c.WriteJSON(m))
}

func readMessage(t *testing.T, c *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m Message
	require.NoError(t, c.ReadJSON(&m))
	return m
}

func TestWebsocketJoinAndRelay(t *testing.T) {
	srv, _ := startWSServer(t, WSOptions{SendBuffer: 16})

	a := dial(t, wsURL(srv, ""))
	b := dial(t, wsURL(srv, ""))

	send(t, a, getDoc("d1"))
	m := readMessage(t, a)
	require.Equal(t, MsgLoadDocument, m.Type)
	var load LoadDocumentPayload
	require.NoError(t, json.Unmarshal(m.Payload, &load))
	require.EqualValues(t, 0, load.Version)

	send(t, b, getDoc("d1"))
	require.Equal(t, MsgLoadDocument, readMessage(t, b).Type)

	delta := json.RawMessage(`{"insert":"hi"}`)
	send(t, a, Message{Type: MsgSendChanges, Payload: delta})

	got := readMessage(t, b)
	require.Equal(t, MsgReceiveChanges, got.Type)
	require.JSONEq(t, string(delta), string(got.Payload))

	// the sender gets nothing back
	require.NoError(t, a.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var echo Message
	require.Error(t, a.ReadJSON(&echo), "sender must not receive its own delta")
}

func TestWebsocketDisconnectCleansRoom(t *testing.T) {
	srv, g := startWSServer(t, WSOptions{SendBuffer: 16})

	a := dial(t, wsURL(srv, ""))
	send(t, a, getDoc("d1"))
	require.Equal(t, MsgLoadDocument, readMessage(t, a).Type)
	require.True(t, g.Registry().HasRoom("d1"))

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool { return !g.Registry().HasRoom("d1") },
		2*time.Second, 10*time.Millisecond, "room must be removed after last disconnect")
}

func TestWebsocketHandshakeAuth(t *testing.T) {
	j := auth.New("test-secret")
	srv, _ := startWSServer(t, WSOptions{SendBuffer: 16, Auth: j})

	// missing token is rejected at the handshake
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	require.Equal(t, 401, resp.StatusCode)

	tok, err := j.Sign("user-1", time.Minute)
	require.NoError(t, err)
	c := dial(t, wsURL(srv, "token="+tok))
	send(t, c, getDoc("d1"))
	require.Equal(t, MsgLoadDocument, readMessage(t, c).Type)
}
