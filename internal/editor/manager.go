package editor

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/neuralnotes/internal/apperr"
)

// Manager keeps the open editor sessions of every connected host.
type Manager struct {
	coll Collection
	opts []SessionOption

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager over coll. opts apply to every
// session it opens.
func NewManager(coll Collection, opts ...SessionOption) *Manager {
	return &Manager{
		coll:     coll,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Open starts a session on noteID.
func (m *Manager) Open(noteID string, extra ...SessionOption) (*Session, error) {
	id := uuid.NewString()
	opts := append(append([]SessionOption(nil), m.opts...), extra...)
	s, err := NewSession(id, m.coll, noteID, opts...)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	return s, nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	return s, nil
}

// Close drops a session. Closing an unknown id is a no-op.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// CloseNote drops every session editing noteID.
func (m *Manager) CloseNote(noteID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.NoteID() == noteID {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Len returns the number of open sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
