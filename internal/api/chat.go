package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/vid-companion/internal/domain"
	"github.com/ashureev/vid-companion/internal/session"
	"github.com/go-chi/chi/v5"
)

const (
	defaultExchangeLimit = 50
	maxExchangeLimit     = 500
	maxRequestBodySize   = 64 << 10
)

// ChatHandler exposes the controller over REST.
type ChatHandler struct {
	*Handler
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(base *Handler) *ChatHandler {
	return &ChatHandler{Handler: base}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.GetState)
		r.Post("/sessions", h.StartSession)
		r.Post("/messages", h.SubmitMessage)
		r.Get("/exchanges", h.ListExchanges)
	})
}

// GetState returns the current controller snapshot.
func (h *ChatHandler) GetState(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.ctrl.State())
}

// StartSession starts a new session in the background.
func (h *ChatHandler) StartSession(w http.ResponseWriter, _ *http.Request) {
	if err := h.ctrl.StartNewSessionAsync(h.ctx); err != nil {
		h.admissionError(w, err)
		return
	}
	JSON(w, http.StatusAccepted, map[string]string{"status": "starting"})
}

type submitRequest struct {
	Text string `json:"text"`
}

// SubmitMessage submits user text; the reply arrives through state updates.
func (h *ChatHandler) SubmitMessage(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.ctrl.SubmitAsync(h.ctx, req.Text); err != nil {
		h.admissionError(w, err)
		return
	}
	JSON(w, http.StatusAccepted, map[string]string{"status": "submitted"})
}

func (h *ChatHandler) admissionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrBusy):
		Error(w, http.StatusConflict, "busy")
	case errors.Is(err, session.ErrNoActiveSession):
		Error(w, http.StatusConflict, "no_active_session")
	case errors.Is(err, session.ErrEmptyMessage):
		Error(w, http.StatusBadRequest, "empty_message")
	default:
		h.logger.Error("Unexpected controller error", "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
	}
}

type exchangeView struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	SessionID  string    `json:"session_id"`
	Query      string    `json:"query,omitempty"`
	Reply      string    `json:"reply,omitempty"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	Preempted  bool      `json:"preempted"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
}

func newExchangeView(ex *domain.Exchange) exchangeView {
	return exchangeView{
		ID:         ex.ID,
		Kind:       string(ex.Kind),
		SessionID:  ex.SessionID,
		Query:      ex.Query,
		Reply:      ex.Reply,
		Outcome:    string(ex.Outcome),
		Error:      ex.Error,
		Preempted:  ex.Preempted,
		StartedAt:  ex.StartedAt,
		DurationMS: ex.Duration().Milliseconds(),
	}
}

// ListExchanges returns journaled exchanges, newest first.
func (h *ChatHandler) ListExchanges(w http.ResponseWriter, r *http.Request) {
	limit := defaultExchangeLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxExchangeLimit)
	}

	records, err := h.journal.RecentExchanges(r.Context(), r.URL.Query().Get("session_id"), limit)
	if err != nil {
		h.logger.Error("Failed to list exchanges", "error", err)
		Error(w, http.StatusInternalServerError, "failed to read exchange journal")
		return
	}

	views := make([]exchangeView, 0, len(records))
	for _, ex := range records {
		views = append(views, newExchangeView(ex))
	}
	JSON(w, http.StatusOK, map[string]any{"exchanges": views})
}
