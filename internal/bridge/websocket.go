package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ashureev/vid-companion/internal/middleware"
	"github.com/ashureev/vid-companion/internal/session"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// Controller is the part of session.Controller the bridge drives.
type Controller interface {
	State() session.State
	StartNewSessionAsync(ctx context.Context) error
	SubmitAsync(ctx context.Context, text string) error
}

// Refresher re-applies the avatar state after the renderer's clips change.
type Refresher interface {
	Refresh()
}

// WebSocketHandler serves GET /ws for renderers.
type WebSocketHandler struct {
	ctx           context.Context
	ctrl          Controller
	hub           *Hub
	relay         *ClipRelay
	avatar        Refresher
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// Config holds WebSocketHandler dependencies. Exchanges started by renderers
// run under Ctx, not under the lifetime of the socket that started them.
type Config struct {
	Ctx           context.Context
	Controller    Controller
	Hub           *Hub
	Relay         *ClipRelay
	Avatar        Refresher
	AllowedOrigin string
	IsDev         bool
	Logger        *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(cfg Config) *WebSocketHandler {
	if cfg.Ctx == nil {
		cfg.Ctx = context.Background()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &WebSocketHandler{
		ctx:           cfg.Ctx,
		ctrl:          cfg.Controller,
		hub:           cfg.Hub,
		relay:         cfg.Relay,
		avatar:        cfg.Avatar,
		allowedOrigin: cfg.AllowedOrigin,
		isDev:         cfg.IsDev,
		logger:        cfg.Logger,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rendererID := middleware.RendererIDFromContext(r.Context())
	if rendererID == "" {
		rendererID = uuid.NewString()
	}
	h.logger.Info("WebSocket connection request", "renderer_id", rendererID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "renderer_id", rendererID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "renderer disconnected"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "renderer_id", rendererID)
		}
	}()

	c := h.hub.register(rendererID, ws)
	defer h.hub.unregister(c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer cancel()
		c.writeLoop(ctx, h.logger)
	}()

	h.sendTo(c, newStateMessage(h.ctrl.State()))
	if h.relay != nil {
		if clip := h.relay.Current(); clip != "" {
			h.sendClip(c, clip)
		}
	}

	h.readLoop(ctx, ws, c)
	cancel()
	<-writerDone
	h.logger.Info("Renderer session ended", "renderer_id", rendererID)
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, c *client) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				h.logger.Debug("WebSocket closed", "renderer_id", c.id)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "renderer_id", c.id)
			}
			return
		}

		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendTo(c, ErrorMessage{Type: TypeError, Code: "invalid_message", Error: "message must be JSON"})
			continue
		}

		switch msg.Type {
		case TypeSubmit:
			if err := h.ctrl.SubmitAsync(h.ctx, msg.Text); err != nil {
				h.sendError(c, err)
			}
		case TypeNewSession:
			if err := h.ctrl.StartNewSessionAsync(h.ctx); err != nil {
				h.sendError(c, err)
			}
		case TypeClips:
			if h.relay != nil {
				h.relay.SetLoaded(msg.Clips)
			}
			if h.avatar != nil {
				h.avatar.Refresh()
			}
			// Refresh is silent when the selection did not change, but this
			// renderer may have dropped it while its assets were loading.
			if h.relay != nil {
				h.sendClip(c, h.relay.Current())
			}
			h.logger.Info("Renderer clips reported", "renderer_id", c.id, "clips", msg.Clips)
		case TypePing:
			h.sendTo(c, map[string]string{"type": TypePong})
		default:
			h.sendTo(c, ErrorMessage{Type: TypeError, Code: "unknown_type", Error: "unknown message type " + msg.Type})
		}
	}
}

func (h *WebSocketHandler) sendTo(c *client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("Failed to encode message", "error", err)
		return
	}
	c.enqueue(data, h.logger)
}

func (h *WebSocketHandler) sendClip(c *client, clip string) {
	data, err := json.Marshal(newClipMessage(clip))
	if err != nil {
		h.logger.Error("Failed to encode clip selection", "error", err)
		return
	}
	c.setClip(data)
}

func (h *WebSocketHandler) sendError(c *client, err error) {
	h.sendTo(c, ErrorMessage{Type: TypeError, Code: ErrorCode(err), Error: err.Error()})
}

// ErrorCode maps controller admission errors to stable codes.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, session.ErrBusy):
		return "busy"
	case errors.Is(err, session.ErrNoActiveSession):
		return "no_active_session"
	case errors.Is(err, session.ErrEmptyMessage):
		return "empty_message"
	default:
		return "internal"
	}
}
