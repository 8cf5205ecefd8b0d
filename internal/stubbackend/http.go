package stubbackend

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ashureev/vid-companion/internal/agent"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Routes returns the HTTP surface: POST /start and POST /ask.
func (b *Backend) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)

	r.Post("/start", b.handleStart)
	r.Post("/ask", b.handleAsk)
	return r
}

func (b *Backend) handleStart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, agent.StartResponse{SessionID: b.StartSession()})
}

func (b *Backend) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req agent.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, agent.ErrorResponse{Error: "invalid JSON body"})
		return
	}

	reply, err := b.Ask(r.Context(), req.SessionID, req.Query)
	switch {
	case errors.Is(err, ErrMissingField), errors.Is(err, ErrInvalidSession):
		writeJSON(w, http.StatusBadRequest, agent.ErrorResponse{Error: err.Error()})
		return
	case err != nil:
		writeJSON(w, http.StatusServiceUnavailable, agent.ErrorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, agent.AskResponse{Response: reply})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}
