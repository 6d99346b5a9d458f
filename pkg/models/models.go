package models

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a chat message
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is a single chat entry. Messages are never mutated in place;
// confirming a pending message replaces it with a copy.
type Message struct {
	ID      string
	Role    Role
	Text    string
	Pending bool // Provisional user message awaiting the backend
}

// NewMessage creates a message with a fresh client-side ID
func NewMessage(role Role, text string) Message {
	return Message{
		ID:   uuid.NewString(),
		Role: role,
		Text: text,
	}
}

// History is a stored session as returned by a history source
type History struct {
	Phase    string
	Messages []Message
}

// HistoryRef points at one stored session of a project
type HistoryRef struct {
	Project      string
	Phase        string
	SessionID    string
	Filename     string
	MessageCount int // Only known when read from the archive
}

// Project represents a project with its stored histories
type Project struct {
	Name         string
	Histories    []HistoryRef // Lazily loaded when needed
	LastActivity time.Time
}
