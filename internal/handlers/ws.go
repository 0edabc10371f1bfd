package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/bablukpik/webrtc-saas-basic-backend/internal/signal"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 70 * time.Second
	wsPingPeriod = 30 * time.Second
)

// HandleWebSocket upgrades the connection and runs the signaling session.
// The token is verified here, outside the signaling core: the core trusts
// the user id presented in register-user.
func (h *Handlers) HandleWebSocket(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token is required"})
		return
	}
	authUserID, err := h.verifyToken(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := h.wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Default().Warn("ws upgrade failed", "user_id", authUserID, "error", err)
		return
	}

	connID, err := gonanoid.New(16)
	if err != nil {
		_ = conn.Close()
		return
	}

	client := &wsClient{
		conn:   conn,
		send:   make(chan []byte, 32),
		connID: connID,
	}

	h.hub.Add(client)
	slog.Default().Debug("ws connected", "conn_id", connID, "user_id", authUserID, "ip", c.ClientIP())

	go h.writePump(client)
	h.readPump(client)
}

func (h *Handlers) readPump(client *wsClient) {
	defer func() {
		_ = client.conn.Close()
		h.deliver(h.relay.Disconnect(client.connID))
		h.hub.Remove(client.connID)
		slog.Default().Debug("ws disconnect", "conn_id", client.connID)
	}()

	_ = client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	client.conn.SetPongHandler(func(string) error {
		_ = client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			slog.Default().Debug("ws read error", "conn_id", client.connID, "error", err)
			return
		}

		// SDP and candidate bodies may contain addresses; log sizes only.
		slog.Default().Debug("ws recv", "conn_id", client.connID, "bytes", len(payload))

		h.deliver(h.relay.HandleMessage(client.connID, payload))
	}
}

func (h *Handlers) writePump(client *wsClient) {
	defer func() {
		_ = client.conn.Close()
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.send:
			if !ok {
				return
			}
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handlers) deliver(outbounds []signal.Outbound) {
	for _, out := range outbounds {
		if !h.hub.Send(out.To, out.Payload) {
			slog.Default().Debug("signal not delivered", "conn_id", out.To)
		}
	}
}
