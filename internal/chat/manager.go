// Package chat keeps chat sessions in process memory. Sessions live until the
// process exits; there is no persistence and no closed state.
package chat

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"docchat/internal/model"
)

// ErrNotFound is returned for an unknown session id.
var ErrNotFound = errors.New("session not found")

// Welcome is the first assistant message of every session.
const Welcome = "Hello! I'm DocAI. I've analyzed your document and ready to answer questions. Ask me anything!"

// Manager is safe for concurrent use. Callers are still expected to run one
// operation per session at a time so user/assistant turns pair up.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
	order    []string
	now      func() time.Time
	newID    func() string
}

// NewManager returns an empty Manager.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*model.Session),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
}

// CreateSession registers a session for a processed document. The session is
// active as soon as it is visible and starts with the welcome message.
func (m *Manager) CreateSession(doc model.Document, extractedText string) *model.Session {
	now := m.now()
	s := &model.Session{
		ID:            m.newID(),
		Document:      doc,
		ExtractedInfo: extractedText,
		State:         model.SessionCreated,
		CreatedAt:     now,
	}
	s.Messages = append(s.Messages, model.Message{Role: model.RoleAssistant, Content: Welcome, Timestamp: now})
	s.State = model.SessionActive

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.order = append(m.order, s.ID)
	m.mu.Unlock()

	return snapshot(s)
}

// AppendUserMessage appends a user turn.
func (m *Manager) AppendUserMessage(id, text string) (model.Message, error) {
	return m.appendMessage(id, model.RoleUser, text)
}

// AppendAssistantMessage appends an assistant turn.
func (m *Manager) AppendAssistantMessage(id, text string) (model.Message, error) {
	return m.appendMessage(id, model.RoleAssistant, text)
}

func (m *Manager) appendMessage(id string, role model.Role, text string) (model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return model.Message{}, ErrNotFound
	}
	msg := model.Message{Role: role, Content: text, Timestamp: m.now()}
	s.Messages = append(s.Messages, msg)
	return msg, nil
}

// GetSession returns a copy of the session.
func (m *Manager) GetSession(id string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return snapshot(s), nil
}

// ListSessions returns summaries newest first.
func (m *Manager) ListSessions() []model.SessionSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.SessionSummary, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		s := m.sessions[m.order[i]]
		out = append(out, model.SessionSummary{
			ID:           s.ID,
			DocumentName: s.Document.Name,
			DocumentURL:  s.Document.Address,
			MessageCount: len(s.Messages),
			CreatedAt:    s.CreatedAt,
		})
	}
	return out
}

// Len reports the number of sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func snapshot(s *model.Session) *model.Session {
	cp := *s
	cp.Messages = append([]model.Message(nil), s.Messages...)
	return &cp
}
