package handlers

import (
	"sync"

	"github.com/gorilla/websocket"
)

type wsClient struct {
	conn      *websocket.Conn
	send      chan []byte
	connID    string
	closeOnce sync.Once
}

func (c *wsClient) trySend(payload []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *wsClient) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// Hub tracks live signaling connections by connection id. Presence and call
// state live in the signal package; the hub only knows how to deliver bytes.
type Hub struct {
	mu      sync.Mutex
	clients map[string]*wsClient
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*wsClient)}
}

func (h *Hub) Add(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old := h.clients[client.connID]; old != nil {
		_ = old.conn.Close()
		old.closeSend()
	}
	h.clients[client.connID] = client
}

func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.clients[connID]; ok {
		client.closeSend()
	}
	delete(h.clients, connID)
}

// Send queues payload for connID. A full send buffer closes the connection,
// which lets the read pump run the disconnect path.
func (h *Hub) Send(connID string, payload []byte) bool {
	h.mu.Lock()
	client := h.clients[connID]
	h.mu.Unlock()

	if client == nil {
		return false
	}
	if !client.trySend(payload) {
		_ = client.conn.Close()
		return false
	}
	return true
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
