// Package bridge streams controller state and avatar clip commands to
// connected renderers over WebSocket and accepts their input.
package bridge

import (
	"github.com/ashureev/vid-companion/internal/session"
)

// Message types on the wire.
const (
	TypeState      = "state"
	TypeClip       = "clip"
	TypeError      = "error"
	TypePong       = "pong"
	TypeSubmit     = "submit"
	TypeNewSession = "new_session"
	TypeClips      = "clips"
	TypePing       = "ping"
)

// StateMessage carries a controller snapshot.
type StateMessage struct {
	Type string `json:"type"`
	session.State
}

// ClipMessage carries the clip renderers must be playing. An empty Playing
// means no clip plays. Each message replaces the previous selection.
type ClipMessage struct {
	Type    string `json:"type"`
	Playing string `json:"playing"`
}

func newClipMessage(clip string) ClipMessage {
	return ClipMessage{Type: TypeClip, Playing: clip}
}

// ErrorMessage reports a rejected request to the renderer that sent it.
type ErrorMessage struct {
	Type  string `json:"type"`
	Code  string `json:"code"`
	Error string `json:"error"`
}

// inbound is any message a renderer sends.
type inbound struct {
	Type  string   `json:"type"`
	Text  string   `json:"text,omitempty"`
	Clips []string `json:"clips,omitempty"`
}

func newStateMessage(st session.State) StateMessage {
	return StateMessage{Type: TypeState, State: st}
}
