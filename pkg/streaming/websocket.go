// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package streaming

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Event is a single coordinator job-lifecycle event broadcast to admin
// listeners: a job was submitted, assigned to a worker, released back to
// the queue, completed, failed, or canceled.
type Event struct {
	Type      string    `json:"type"`
	JobKey    string    `json:"job_key"`
	Kind      string    `json:"kind,omitempty"`
	State     string    `json:"state,omitempty"`
	Worker    string    `json:"worker,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// StreamMessage is the envelope written to a WebSocket client.
type StreamMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Error     string      `json:"error,omitempty"`
}

// Hub fans out coordinator lifecycle events to every connected admin
// WebSocket client. The coordinator calls Broadcast as it mutates jobs;
// it never blocks on slow or absent listeners.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan Event
}

// NewHub creates a new event hub.
func NewHub() *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*client]struct{}),
	}
}

// Broadcast delivers an event to every currently connected client. Clients
// whose send buffer is full are dropped rather than blocking the caller.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			log.Printf("streaming: dropping event for slow client")
		}
	}
}

// ServeWS upgrades the request to a WebSocket and streams lifecycle events
// to it until the client disconnects or the request context ends.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("streaming: upgrade error: %v", err)
		return
	}
	defer func() {
		if err := conn.Close(); err != nil {
			log.Printf("streaming: close error: %v", err)
		}
	}()

	c := &client{conn: conn, send: make(chan Event, 64)}
	h.addClient(c)
	defer h.removeClient(c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.discardIncoming(conn, cancel)

	h.writeLoop(ctx, c)
}

func (h *Hub) addClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) removeClient(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

// discardIncoming drains (and ignores) any client-sent frames so the
// connection's read deadline keeps advancing, and cancels ctx on close.
func (h *Hub) discardIncoming(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("streaming: read error: %v", err)
			}
			return
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-c.send:
			if err := c.conn.WriteJSON(StreamMessage{
				Type:      "event",
				Data:      ev,
				Timestamp: time.Now(),
			}); err != nil {
				log.Printf("streaming: write error: %v", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("streaming: ping error: %v", err)
				return
			}
		}
	}
}
