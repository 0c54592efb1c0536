package alert

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Message is the envelope pushed to UI clients: alert lines, periodic
// status snapshots, and transient visual alerts ("flash").
type Message struct {
	Type   string  `json:"type"` // "alert" | "status" | "flash"
	Alert  *Entry  `json:"alert,omitempty"`
	Status *Status `json:"status,omitempty"`
}

// Status is the sensor snapshot the UI renders.
type Status struct {
	Running   bool `json:"running"`
	Motion    bool `json:"motion"`
	Sound     bool `json:"sound"`
	Recording bool `json:"recording"`
}

// Hub fans alert messages out to websocket clients. Delivery is best-effort:
// a client that cannot keep up has its send buffer dropped on the floor and
// is eventually disconnected; the detection pipeline never blocks on the UI.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	logger  *zap.SugaredLogger

	upgrader websocket.Upgrader
}

type client struct {
	conn *websocket.Conn
	send chan Message
}

// NewHub creates an empty hub.
func NewHub(logger *zap.SugaredLogger) *Hub {
	return &Hub{
		clients: make(map[*client]struct{}),
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The control surface is same-station; no origin policy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the connection and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan Message, 32)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(c)
	go h.readLoop(c)
}

// Broadcast sends a message to every connected client without blocking.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Slow client; drop the message.
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	defer h.drop(c)
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// readLoop discards client input; its job is noticing disconnects.
func (h *Hub) readLoop(c *client) {
	defer h.drop(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.conn.Close()
}
