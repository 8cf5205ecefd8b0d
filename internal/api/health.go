package api

import (
	"context"
	"net/http"
	"time"
)

// Health reports liveness, journal reachability and connected renderers.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := map[string]any{"status": "ok", "journal": "ok"}
	if err := h.journal.Ping(ctx); err != nil {
		h.logger.Warn("Journal ping failed", "error", err)
		status = http.StatusServiceUnavailable
		body["status"] = "degraded"
		body["journal"] = err.Error()
	}
	if h.renderers != nil {
		body["renderers"] = h.renderers.Len()
	}
	body["busy"] = h.ctrl.State().Busy
	JSON(w, status, body)
}
