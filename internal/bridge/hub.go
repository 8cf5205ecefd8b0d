package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/vid-companion/internal/session"
	"github.com/coder/websocket"
)

const (
	sendQueueSize = 32
	writeTimeout  = 5 * time.Second
)

// client is one connected renderer with its outbound queue.
// Clip selections bypass the queue: only the latest one is kept and it is
// never dropped.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	clipMu    sync.Mutex
	clip      []byte
	clipReady chan struct{}
}

func newClient(id string, conn *websocket.Conn) *client {
	return &client{
		id:        id,
		conn:      conn,
		send:      make(chan []byte, sendQueueSize),
		clipReady: make(chan struct{}, 1),
	}
}

// setClip replaces the pending clip selection.
func (c *client) setClip(data []byte) {
	c.clipMu.Lock()
	c.clip = data
	c.clipMu.Unlock()

	select {
	case c.clipReady <- struct{}{}:
	default:
	}
}

// takeClip returns and clears the pending clip selection.
func (c *client) takeClip() []byte {
	c.clipMu.Lock()
	defer c.clipMu.Unlock()
	data := c.clip
	c.clip = nil
	return data
}

// enqueue queues data without blocking. When the queue is full the oldest
// message is dropped; state snapshots are full replacements, so a slow
// renderer only misses intermediate ones.
func (c *client) enqueue(data []byte, logger *slog.Logger) {
	for {
		select {
		case c.send <- data:
			return
		default:
		}

		select {
		case <-c.send:
			logger.Warn("Renderer queue full, dropped oldest message", "renderer_id", c.id)
		default:
		}
	}
}

func (c *client) writeLoop(ctx context.Context, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.send:
			if !c.write(ctx, data, logger) {
				return
			}
		case <-c.clipReady:
			if data := c.takeClip(); data != nil && !c.write(ctx, data, logger) {
				return
			}
		}
	}
}

func (c *client) write(ctx context.Context, data []byte, logger *slog.Logger) bool {
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := c.conn.Write(writeCtx, websocket.MessageText, data); err != nil {
		if ctx.Err() == nil {
			logger.Debug("WebSocket write error", "renderer_id", c.id, "error", err)
		}
		return false
	}
	return true
}

// Hub tracks connected renderers by id.
type Hub struct {
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		clients: make(map[string]*client),
	}
}

// register adds conn under id, closing any connection it replaces.
func (h *Hub) register(id string, conn *websocket.Conn) *client {
	c := newClient(id, conn)

	h.mu.Lock()
	defer h.mu.Unlock()
	if existing, ok := h.clients[id]; ok && existing.conn != conn {
		_ = existing.conn.Close(websocket.StatusNormalClosure, "renderer replaced")
	}
	h.clients[id] = c
	h.logger.Info("Renderer registered", "renderer_id", id, "renderers", len(h.clients))
	return c
}

// unregister removes c if it is still the registered client for its id.
func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.clients[c.id]; ok && current == c {
		delete(h.clients, c.id)
		h.logger.Info("Renderer unregistered", "renderer_id", c.id, "renderers", len(h.clients))
	}
}

// Len returns the number of connected renderers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends v to every connected renderer without blocking.
func (h *Hub) Broadcast(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to encode broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.enqueue(data, h.logger)
	}
}

// BroadcastClip hands the clip selection to every renderer. Each renderer
// keeps only the newest selection, which is always delivered.
func (h *Hub) BroadcastClip(msg ClipMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Failed to encode clip selection", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		c.setClip(data)
	}
}

// PublishState broadcasts a controller snapshot. It is meant to be registered
// with session.Controller.AddListener.
func (h *Hub) PublishState(st session.State) {
	h.Broadcast(newStateMessage(st))
}

// CloseAll disconnects every renderer.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.clients {
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(h.clients, id)
	}
}
