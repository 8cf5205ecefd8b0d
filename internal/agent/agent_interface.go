package agent

import (
	"context"
)

// Client defines the transport to the remote conversational backend.
// Each call is a single request/response exchange that may fail.
type Client interface {
	// StartSession asks the backend for a new conversation and returns its id.
	StartSession(ctx context.Context) (string, error)

	// Ask sends a query within a session and returns the full reply text.
	Ask(ctx context.Context, sessionID, query string) (string, error)

	// Close releases resources.
	Close()
}

// Ensure both transports implement Client.
var (
	_ Client = (*GrpcClient)(nil)
	_ Client = (*HTTPClient)(nil)
)
