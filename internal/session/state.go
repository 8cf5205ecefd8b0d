// Package session orchestrates the exchanges with the conversational backend.
//
// The Controller serializes exchanges behind a single gate: at most one exchange
// owns the gate at a time, and Busy reports whether it is held. A session start
// may take the gate away from a pending ask; the ask still completes later and
// delivers its reply to the session id it captured when it started.
package session

import (
	"errors"
	"fmt"

	"github.com/ashureev/vid-companion/internal/domain"
)

var (
	// ErrBusy is returned when an exchange already owns the gate.
	ErrBusy = errors.New("an exchange is already outstanding")
	// ErrNoActiveSession is returned by Submit before any session exists.
	ErrNoActiveSession = errors.New("no active session")
	// ErrEmptyMessage is returned by Submit for blank input.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrTransportFailure marks a failed exchange with the backend.
	ErrTransportFailure = errors.New("transport failure")
)

// Phase is the controller's position in its exchange state machine.
type Phase int

const (
	// PhaseIdle means no exchange owns the gate.
	PhaseIdle Phase = iota
	// PhaseAwaitingSessionStart means a session start owns the gate.
	PhaseAwaitingSessionStart
	// PhaseAwaitingReply means an ask owns the gate; the avatar is speaking.
	PhaseAwaitingReply
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingSessionStart:
		return "awaiting_session_start"
	case PhaseAwaitingReply:
		return "awaiting_reply"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// State is a consistent snapshot of everything the presentation layer renders.
type State struct {
	// Version increases with every mutation; snapshots delivered to listeners
	// never go backwards.
	Version         uint64           `json:"version"`
	Phase           Phase            `json:"phase"`
	Busy            bool             `json:"busy"`
	Speaking        bool             `json:"speaking"`
	ActiveSessionID string           `json:"session_id,omitempty"`
	Messages        []domain.Message `json:"messages"`

	// LastError describes the most recent failed exchange. It is cleared by
	// the next exchange that succeeds.
	LastError     string              `json:"last_error,omitempty"`
	LastErrorKind domain.ExchangeKind `json:"last_error_kind,omitempty"`
}

// ExchangeError describes a failed exchange. It matches both ErrTransportFailure
// and the underlying transport error with errors.Is.
type ExchangeError struct {
	Kind domain.ExchangeKind
	Err  error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s exchange failed: %v", e.Kind, e.Err)
}

func (e *ExchangeError) Unwrap() []error {
	return []error{ErrTransportFailure, e.Err}
}
