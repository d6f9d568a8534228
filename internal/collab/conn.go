package collab

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/coscribe/coscribe/server/pkg/auth"
	"github.com/coscribe/coscribe/server/pkg/logger"
	"github.com/coscribe/coscribe/server/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second
	// maximum inbound frame size; full snapshots are bounded by the client
	maxMessageSize = 1 << 20
)

// WSOptions configures the websocket endpoint.
type WSOptions struct {
	// AllowedOrigin restricts the upgrade handshake; "*" or empty allows all.
	AllowedOrigin string
	// Auth, when set, requires a valid ?token= on the handshake and uses its
	// subject as the editor identity.
	Auth *auth.JWT
	// SendBuffer is the per-session outbound queue length.
	SendBuffer int
}

// ServeWS returns the gin handler that upgrades a request to a websocket and
// runs the session until disconnect. Read-only mode is selected with
// ?mode=readonly; such sessions receive broadcasts but never write.
func (g *Gateway) ServeWS(opts WSOptions) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if opts.AllowedOrigin == "" || opts.AllowedOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == opts.AllowedOrigin
		},
	}

	return func(c *gin.Context) {
		editorID := ""
		if opts.Auth != nil {
			sub, err := opts.Auth.Verify(c.Query("token"))
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			editorID = sub
		}
		readOnly := c.Query("mode") == "readonly"

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warnf("ws upgrade failed: %v", err)
			return
		}

		s := NewSession(editorID, readOnly, opts.SendBuffer)
		metrics.SessionsConnected.Inc()
		logger.Infof("session %s connected (readOnly=%v)", s.ID(), readOnly)

		go writeLoop(ws, s)
		g.readLoop(c.Request.Context(), ws, s)

		// every disconnect path lands here; Teardown is idempotent
		g.Teardown(s)
		_ = ws.Close()
		metrics.SessionsConnected.Dec()
		logger.Infof("session %s disconnected", s.ID())
	}
}

func (g *Gateway) readLoop(ctx context.Context, ws *websocket.Conn, s *Session) {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var m Message
		if err := json.Unmarshal(data, &m); err != nil {
			s.Send(errorMessage("malformed message"))
			continue
		}
		g.HandleMessage(ctx, s, m)
	}
}

// writeLoop drains the session's outbound queue and keeps the connection
// alive with periodic pings. It exits on write failure or teardown.
func writeLoop(ws *websocket.Conn, s *Session) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case m := <-s.Outbound():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(m); err != nil {
				return
			}
		case <-t.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.Done():
			return
		}
	}
}
