package session

import (
	"log/slog"
	"sync"
	"time"
)

// InactivityWindow is how long a session's flow state may sit untouched
// before the sweep clears it.
const InactivityWindow = 45 * time.Minute

// SweepInterval is how often the inactivity sweep runs.
const SweepInterval = 10 * time.Minute

// Store provides keyed access to sessions. Implementations must be safe for
// concurrent use; per-session serialization is the session's own mutex.
type Store interface {
	// Get returns the session for the user id, or nil if none exists.
	Get(userID string) *Session
	// GetOrCreate returns the existing session or creates an empty one.
	GetOrCreate(userID string) *Session
	// Delete removes the session entirely.
	Delete(userID string)
	// Len reports the number of live sessions.
	Len() int
	// SweepInactive clears the flow state of every session idle longer
	// than the window and returns how many were cleared.
	SweepInactive(now time.Time, window time.Duration) int
}

// MemoryStore is the in-process Store used in production. Sessions are
// deliberately ephemeral; durable user data lives in the relational store.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Get returns the session for the user id, or nil.
func (m *MemoryStore) Get(userID string) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[userID]
}

// GetOrCreate returns the existing session or creates an empty one.
func (m *MemoryStore) GetOrCreate(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s := New(userID)
	m.sessions[userID] = s
	return s
}

// Delete removes the session entirely.
func (m *MemoryStore) Delete(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
}

// Len reports the number of live sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SweepInactive clears flow state on sessions idle past the window. The
// session itself survives so history and mood context carry into the next
// conversation.
func (m *MemoryStore) SweepInactive(now time.Time, window time.Duration) int {
	m.mu.RLock()
	candidates := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		candidates = append(candidates, s)
	}
	m.mu.RUnlock()

	cleared := 0
	for _, s := range candidates {
		s.Lock()
		if !s.LastInteraction.IsZero() && now.Sub(s.LastInteraction) > window && s.HasActiveFlow() {
			slog.Debug("session.SweepInactive clearing stale flow", "userID", s.UserID, "idle", now.Sub(s.LastInteraction))
			s.ClearFlow()
			cleared++
		}
		s.Unlock()
	}
	if cleared > 0 {
		slog.Info("session sweep cleared stale flows", "count", cleared)
	}
	return cleared
}
