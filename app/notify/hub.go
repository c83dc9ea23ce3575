package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// Message is what connected clients receive.
type Message struct {
	Type      string         `json:"type"`
	Text      string         `json:"text"`
	Item      *MessageItem   `json:"item,omitempty"`
	Stats     map[string]int `json:"stats,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

type MessageItem struct {
	ID       string `json:"id"`
	Category string `json:"category"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

type client struct {
	conn *websocket.Conn
	id   string
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub fans notifications out to every connected websocket client.
type Hub struct {
	upgrader websocket.Upgrader
	clients  sync.Map
	nextID   atomic.Int64
	count    atomic.Int64
}

func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects. Incoming messages are ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	clientID := fmt.Sprintf("ws-%d", h.nextID.Add(1))
	c := &client{conn: conn, id: clientID}
	h.clients.Store(clientID, c)
	h.count.Add(1)
	slog.Debug("Websocket client connected", "client", clientID)

	defer func() {
		h.clients.Delete(clientID)
		h.count.Add(-1)
		conn.Close()
		slog.Debug("Websocket client disconnected", "client", clientID)
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends msg to all clients and returns how many received it.
func (h *Hub) Broadcast(msg Message) (int, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to encode notification: %w", err)
	}

	delivered := 0
	h.clients.Range(func(key, value any) bool {
		c := value.(*client)
		if err := c.write(data); err != nil {
			slog.Debug("Websocket write failed", "client", c.id, "error", err)
			return true
		}
		delivered++
		return true
	})

	return delivered, nil
}

func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.clients.Range(func(key, value any) bool {
		c := value.(*client)
		c.mu.Lock()
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		c.conn.Close()
		return true
	})
}
