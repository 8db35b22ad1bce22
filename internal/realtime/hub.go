// Package realtime broadcasts store-change notifications (document
// ingested/deleted, crawl completed, disk flush finished) to connected
// websocket clients, so a UI can reflect the knowledge store live instead
// of polling db_stats.
package realtime

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is one broadcastable change notification.
type Event struct {
	Type      string    `json:"type"`   // "document", "crawl", "sync"
	Action    string    `json:"action"` // "created", "deleted", "completed", "flushed"
	URL       string    `json:"url,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

// Client is one connected websocket subscriber.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan Event
	hub    *Hub
	mu     sync.Mutex
	closed bool
}

func (c *Client) safeClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.send)
		c.closed = true
	}
}

// Hub fans out Events to every registered Client.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	mu         sync.RWMutex
}

// NewHub constructs an empty Hub; call Run to start its event loop.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 256),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		h.mu.Lock()
		for c := range h.clients {
			c.safeClose()
			_ = c.conn.Close()
		}
		h.mu.Unlock()
	}()

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.removeClient(c)

		case event := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- event:
				default:
					h.removeClientLocked(c)
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeClientLocked(c)
}

func (h *Hub) removeClientLocked(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.safeClose()
		_ = c.conn.Close()
	}
}

// Broadcast enqueues event for delivery; it drops the event rather than
// block the caller when the broadcast channel is saturated.
func (h *Hub) Broadcast(event Event) {
	select {
	case h.broadcast <- event:
	default:
		log.Printf("realtime: broadcast channel full, dropping %s/%s event", event.Type, event.Action)
	}
}

// ClientCount reports how many clients are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds conn as a new subscriber and starts its pumps; it returns
// once the client disconnects.
func (h *Hub) Register(ctx context.Context, id string, conn *websocket.Conn) {
	c := &Client{id: id, conn: conn, send: make(chan Event, 64), hub: h}
	h.register <- c

	done := make(chan struct{})
	go c.writePump(ctx, done)
	c.readPump(ctx)
	<-done
}

func (c *Client) writePump(ctx context.Context, done chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		close(done)
	}()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister <- c
	}()
	c.conn.SetReadLimit(512)
	for {
		if ctx.Err() != nil {
			return
		}
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
