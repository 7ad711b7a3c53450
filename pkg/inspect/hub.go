package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MessageType is the type of a message sent to inspector clients.
type MessageType string

const (
	MessageEvent MessageType = "event"
	MessageReset MessageType = "reset"
	MessageError MessageType = "error"
)

// Message is sent to inspector clients via WebSocket.
type Message struct {
	Type   MessageType `json:"type"`
	Record *Record     `json:"record,omitempty"`
	Error  string      `json:"error,omitempty"`
}

const (
	// clientBuffer is how many messages may queue for one client before it
	// is dropped as too slow.
	clientBuffer = 256

	// writeWait bounds a single write to a client.
	writeWait = 10 * time.Second
)

// Hub streams records to connected WebSocket clients. It implements Sink.
//
// Publishing never blocks on the network: each client has its own queue
// drained by a writer goroutine, and a client whose queue is full is
// disconnected.
type Hub struct {
	clients  map[*client]struct{}
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

var _ Sink = (*Hub)(nil)

// NewHub creates a hub. A nil logger selects slog.Default().
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Inspector is a local debugging surface
			},
		},
		logger: logger,
	}
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the client disconnects. Client messages are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := h.upgrader.Upgrade(w, req, nil)
	if err != nil {
		h.logger.Warn("inspect: websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("inspect: client connected", "remote", req.RemoteAddr)

	go h.writeLoop(c)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.drop(c)
}

func (h *Hub) writeLoop(c *client) {
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.drop(c)
			return
		}
	}
}

// Publish implements Sink.
func (h *Hub) Publish(rec Record) {
	h.broadcast(Message{Type: MessageEvent, Record: &rec})
}

// NotifyReset tells clients to clear their view.
func (h *Hub) NotifyReset() {
	h.broadcast(Message{Type: MessageReset})
}

// NotifyError sends an error message to all clients.
func (h *Hub) NotifyError(errMsg string) {
	h.broadcast(Message{Type: MessageError, Error: errMsg})
}

func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("inspect: encode message", "error", err)
		return
	}

	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("inspect: dropping slow client", "remote", c.conn.RemoteAddr().String())
		h.drop(c)
	}
}

// drop unregisters c, stops its writer and closes the connection. Only the
// first call for a client has an effect.
func (h *Hub) drop(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	if ok {
		c.conn.Close()
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close closes all client connections.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		c.conn.Close()
		delete(h.clients, c)
	}
}
