// Package api provides the REST handlers of the presentation bridge.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/vid-companion/internal/session"
	"github.com/ashureev/vid-companion/internal/store"
)

// Controller is the part of session.Controller the REST surface drives.
type Controller interface {
	State() session.State
	StartNewSessionAsync(ctx context.Context) error
	SubmitAsync(ctx context.Context, text string) error
}

// RendererCounter reports how many renderers are connected.
type RendererCounter interface {
	Len() int
}

// Handler provides common handler utilities.
type Handler struct {
	ctx       context.Context
	ctrl      Controller
	journal   store.Journal
	renderers RendererCounter
	logger    *slog.Logger
}

// NewHandler creates a new Handler. Exchanges started through it run under ctx.
func NewHandler(ctx context.Context, ctrl Controller, journal store.Journal, renderers RendererCounter, logger *slog.Logger) *Handler {
	if ctx == nil {
		ctx = context.Background()
	}
	if journal == nil {
		journal = store.NoopJournal{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		ctx:       ctx,
		ctrl:      ctrl,
		journal:   journal,
		renderers: renderers,
		logger:    logger,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
