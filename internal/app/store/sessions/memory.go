// internal/app/store/sessions/memory.go
package sessions

import (
	"context"
	"sync"
)

// MemoryBackend keeps sessions in process memory. All sessions are lost when
// the process exits.
type MemoryBackend struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryBackend returns an empty MemoryBackend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sessions: make(map[string]Session)}
}

// Insert implements Backend.
func (m *MemoryBackend) Insert(_ context.Context, token string, sess Session) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[token]; exists {
		return false, nil
	}
	m.sessions[token] = sess
	return true, nil
}

// Get implements Backend.
func (m *MemoryBackend) Get(_ context.Context, token string) (Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[token]
	return sess, ok, nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, token)
	return nil
}

// Len returns the number of live sessions.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
