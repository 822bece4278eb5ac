package model

import "time"

// Role tags who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is append-only. Slice order within a session is conversational order.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionState is the lifecycle of a chat session. There is no closed state.
type SessionState string

const (
	SessionCreated SessionState = "created"
	SessionActive  SessionState = "active"
)

// Session pairs one processed document with its extraction and message log.
type Session struct {
	ID            string       `json:"id"`
	Document      Document     `json:"document"`
	ExtractedInfo string       `json:"extractedInfo"`
	State         SessionState `json:"state"`
	Messages      []Message    `json:"messages"`
	CreatedAt     time.Time    `json:"created_at"`
}

// SessionSummary is the sidebar view of a session.
type SessionSummary struct {
	ID           string    `json:"id"`
	DocumentName string    `json:"document_name"`
	DocumentURL  string    `json:"document_url"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}
