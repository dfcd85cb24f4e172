package session

import (
	"errors"
	"sync"

	"github.com/revlab/sessiond/internal/event"
	"github.com/revlab/sessiond/internal/metrics"
)

// ErrNotFound is returned when no active session has the given id.
var ErrNotFound = errors.New("session not found")

// Manager owns the active sessions, keyed by participant id. Each session is
// single-participant; the manager only exists because the HTTP layer may be
// serving several participants' dashboards at once.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	store    Store
}

// NewManager creates a manager whose sessions persist events to store
// (store may be nil for memory-only operation).
func NewManager(store Store) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		store:    store,
	}
}

// Start creates a new session, records its session_start event, and returns it.
func (m *Manager) Start(participantName, participantInfo, taskID string) *Session {
	s := New(NewID(), participantName, participantInfo, taskID, m.store)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	metrics.SessionsStarted.Inc()
	s.Record(event.SessionStart, taskID, map[string]interface{}{
		"participant_info": participantInfo,
	})
	return s
}

// Get returns the active session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove drops a session from the active set (after finalize + archive).
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// All returns the active sessions in no particular order.
func (m *Manager) All() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// FinalizeAll finalizes every active session. Used on shutdown so that a
// closed application still yields well-formed session records.
func (m *Manager) FinalizeAll() {
	for _, s := range m.All() {
		s.Finalize()
	}
}
