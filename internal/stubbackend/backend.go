// Package stubbackend is an echo implementation of the conversational backend
// for local development and transport tests. It serves the same session and
// ask contract over HTTP and gRPC.
package stubbackend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrMissingField is returned when the query or session id is empty.
	ErrMissingField = errors.New("query or session_id not provided")
	// ErrInvalidSession is returned for a session id the backend never issued.
	ErrInvalidSession = errors.New("invalid session_id")
)

// Turn is one question and answer held in a session's history.
type Turn struct {
	Query    string
	Response string
}

// Backend keeps per-session chat histories in memory.
type Backend struct {
	delay  time.Duration
	logger *slog.Logger

	mu        sync.Mutex
	histories map[string][]Turn
}

// New creates a backend that waits delay before every reply.
func New(delay time.Duration, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		delay:     delay,
		logger:    logger,
		histories: make(map[string][]Turn),
	}
}

// StartSession issues a new session id with an empty history.
func (b *Backend) StartSession() string {
	id := uuid.NewString()

	b.mu.Lock()
	b.histories[id] = nil
	b.mu.Unlock()

	b.logger.Info("Stub session started", "session_id", id)
	return id
}

// Ask answers query within sessionID. The reply is delayed by the configured
// latency unless ctx ends first.
func (b *Backend) Ask(ctx context.Context, sessionID, query string) (string, error) {
	if query == "" || sessionID == "" {
		return "", ErrMissingField
	}

	b.mu.Lock()
	history, ok := b.histories[sessionID]
	b.mu.Unlock()
	if !ok {
		return "", ErrInvalidSession
	}

	if b.delay > 0 {
		timer := time.NewTimer(b.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	response := fmt.Sprintf("You said: %s", query)
	if len(history) > 0 {
		response = fmt.Sprintf("%s (message %d in this session)", response, len(history)+1)
	}

	b.mu.Lock()
	b.histories[sessionID] = append(b.histories[sessionID], Turn{Query: query, Response: response})
	b.mu.Unlock()

	b.logger.Debug("Stub reply", "session_id", sessionID, "turns", len(history)+1)
	return response, nil
}

// History returns a copy of the turns recorded for sessionID.
func (b *Backend) History(sessionID string) ([]Turn, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	history, ok := b.histories[sessionID]
	if !ok {
		return nil, false
	}
	return append([]Turn(nil), history...), true
}
