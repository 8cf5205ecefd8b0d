package middleware

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// RendererHeaderName lets a renderer keep a stable id across reconnects.
const RendererHeaderName = "X-Renderer-ID"

type contextKey int

const rendererIDKey contextKey = iota

var rendererIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,64}$`)

// RendererIDFromContext returns the renderer id stored by RendererID, or "".
func RendererIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(rendererIDKey).(string); ok {
		return v
	}
	return ""
}

// WithRendererID returns a copy of ctx carrying id.
func WithRendererID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, rendererIDKey, id)
}

// RendererID tags each request with a renderer id taken from the
// X-Renderer-ID header or the "renderer" query parameter. Missing or malformed
// ids are replaced with a fresh uuid.
func RendererID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RendererHeaderName)
		if id == "" {
			id = r.URL.Query().Get("renderer")
		}
		if !rendererIDPattern.MatchString(id) {
			id = uuid.NewString()
		}
		next.ServeHTTP(w, r.WithContext(WithRendererID(r.Context(), id)))
	})
}
