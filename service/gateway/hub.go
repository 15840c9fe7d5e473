package gateway

import (
	"sync"

	"github.com/gorilla/websocket"

	"CareChat/logger"
	"CareChat/tools/safe"
)

// Client is one websocket subscriber of a conversation stream. Each client
// owns an outbound queue consumed by a single writer goroutine.
type Client struct {
	ConnID   string
	UserID   string
	UserName string
	ConvID   string
	WS       *websocket.Conn
	Send     chan []byte
}

func NewClient(connID, userID, userName, convID string, ws *websocket.Conn, sendQueue int) *Client {
	return &Client{
		ConnID:   connID,
		UserID:   userID,
		UserName: userName,
		ConvID:   convID,
		WS:       ws,
		Send:     make(chan []byte, sendQueue),
	}
}

// writePump drains the send queue onto the socket. It is the only goroutine
// writing data frames on this connection.
func (c *Client) writePump() {
	for payload := range c.Send {
		if err := c.WS.WriteMessage(websocket.TextMessage, payload); err != nil {
			logger.Debugf("[hub] write err conn=%s err=%v", c.ConnID, err)
			break
		}
	}
	_ = c.WS.Close()
}

// Hub indexes live clients by conversation.
type Hub struct {
	mu     sync.RWMutex
	byConv map[string]map[string]*Client // convID -> connID -> client
}

func NewHub() *Hub {
	return &Hub{byConv: make(map[string]map[string]*Client)}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.byConv[c.ConvID]
	if !ok {
		conns = make(map[string]*Client)
		h.byConv[c.ConvID] = conns
	}
	conns[c.ConnID] = c
	safe.Go(c.writePump)
}

// Unregister removes the client and closes its send queue, which stops the
// writer goroutine. Safe to call once per client.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.byConv[c.ConvID]
	if !ok {
		return
	}
	if _, live := conns[c.ConnID]; !live {
		return
	}
	delete(conns, c.ConnID)
	if len(conns) == 0 {
		delete(h.byConv, c.ConvID)
	}
	close(c.Send)
}

// Clients snapshots the subscribers of one conversation.
func (h *Hub) Clients(convID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := h.byConv[convID]
	out := make([]*Client, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}
