// Package conversation holds every chat session and its message history.
// It performs no I/O; the session controller is its only writer.
package conversation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ashureev/vid-companion/internal/domain"
	"github.com/google/uuid"
)

// ErrUnknownSession is returned when a session id does not key an existing session.
var ErrUnknownSession = errors.New("unknown session")

// Store is the single source of truth for sessions and the active session pointer.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	order    []string
	activeID string
}

// NewStore creates an empty store with no active session.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*domain.Session),
	}
}

// CreateSession inserts a new session under a freshly generated id, seeds it with
// an assistant greeting and makes it active.
func (s *Store) CreateSession(seedText string) string {
	return s.CreateSessionWithID(uuid.NewString(), seedText)
}

// CreateSessionWithID is CreateSession for ids issued by the backend.
// If the id already exists the existing history is kept and the session is re-activated.
func (s *Store) CreateSessionWithID(id, seedText string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[id]; !exists {
		s.sessions[id] = domain.NewSession(id, seedText)
		s.order = append(s.order, id)
	}
	s.activeID = id
	return id
}

// AppendMessage appends msg to the named session.
func (s *Store) AppendMessage(sessionID string, msg domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return fmt.Errorf("append to %q: %w", sessionID, ErrUnknownSession)
	}
	sess.Append(msg)
	return nil
}

// ActiveMessages returns a copy of the active session's messages, or an empty
// slice when no session is active.
func (s *Store) ActiveMessages() []domain.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.activeID == "" {
		return []domain.Message{}
	}
	return s.sessions[s.activeID].Snapshot()
}

// ActiveSessionID returns the active session id and whether one is set.
func (s *Store) ActiveSessionID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID, s.activeID != ""
}

// Messages returns a copy of the messages of any session, active or not.
func (s *Store) Messages(sessionID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("read %q: %w", sessionID, ErrUnknownSession)
	}
	return sess.Snapshot(), nil
}

// SessionIDs lists session ids in creation order.
func (s *Store) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
