// Package domain contains core domain types for the avatar chat client.
package domain

import "github.com/google/uuid"

// Sender identifies who authored a message.
type Sender string

const (
	// SenderUser marks messages typed by the local user.
	SenderUser Sender = "user"
	// SenderAssistant marks messages produced by the backend (including the greeting and fallback).
	SenderAssistant Sender = "assistant"
)

// Message is a single chat entry. Messages are never mutated after creation.
type Message struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Sender Sender `json:"sender"`
}

// NewMessage creates a message with a fresh identifier.
func NewMessage(sender Sender, text string) Message {
	return Message{
		ID:     uuid.NewString(),
		Text:   text,
		Sender: sender,
	}
}
