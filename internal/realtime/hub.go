// Package realtime streams engine views and clock ticks to browsers over
// WebSocket.
package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-quiz/internal/quiz"
)

const (
	writeTimeout = 5 * time.Second
	clientBuffer = 16
)

// Message types sent to clients.
const (
	TypeView = "view"
	TypeTick = "tick"
)

// Message is one frame on the stream.
type Message struct {
	Type         string     `json:"type"`
	View         *quiz.View `json:"view,omitempty"`
	Elapsed      int        `json:"elapsed,omitempty"`
	ElapsedLabel string     `json:"elapsedLabel,omitempty"`
}

type client struct {
	send chan Message
}

// Hub implements quiz.Presenter by fanning messages out to every connected
// client. A client that falls behind loses messages rather than blocking the
// engine.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	last    *quiz.View
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Present broadcasts a view and remembers it for clients that join later.
func (h *Hub) Present(v quiz.View) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = &v
	h.broadcastLocked(Message{Type: TypeView, View: &v})
}

// Tick broadcasts the clock.
func (h *Hub) Tick(elapsed int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(Message{
		Type:         TypeTick,
		Elapsed:      elapsed,
		ElapsedLabel: quiz.FormatElapsed(elapsed),
	})
}

func (h *Hub) broadcastLocked(msg Message) {
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slog.Debug("realtime client slow, dropping message", "type", msg.Type)
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) register() *client {
	c := &client{send: make(chan Message, clientBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last != nil {
		v := *h.last
		c.send <- Message{Type: TypeView, View: &v}
	}
	h.clients[c] = struct{}{}
	return c
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// ServeHTTP upgrades the request and streams messages until the client goes
// away. Anything the client sends is ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	c := h.register()
	defer h.unregister(c)
	slog.Info("realtime client connected", "remote", r.RemoteAddr)

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			slog.Info("realtime client disconnected", "remote", r.RemoteAddr)
			return
		case msg := <-c.send:
			if err := write(ctx, conn, msg); err != nil {
				slog.Warn("realtime write failed", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}
