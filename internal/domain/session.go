package domain

// Session is one conversation thread with its ordered message history.
type Session struct {
	ID       string
	Messages []Message
}

// NewSession creates a session seeded with a single assistant greeting.
func NewSession(id, greeting string) *Session {
	return &Session{
		ID:       id,
		Messages: []Message{NewMessage(SenderAssistant, greeting)},
	}
}

// Append adds a message to the end of the history.
func (s *Session) Append(msg Message) {
	s.Messages = append(s.Messages, msg)
}

// Snapshot returns a copy of the message history that callers may keep.
func (s *Session) Snapshot() []Message {
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}
