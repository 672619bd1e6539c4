// Package confirm tracks the single pending parameter change a user may
// have in flight and classifies their yes/no/"no, use X instead" replies.
package confirm

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Change is a parameter update parked behind a confirmation.
type Change struct {
	ID       string
	Field    string
	OldValue string
	NewValue string
	Created  time.Time
}

// Manager keeps at most one pending change per user. Proposing a new
// change replaces any previous one, so a user can never accumulate a
// queue of stale questions.
type Manager struct {
	mu      sync.Mutex
	pending map[string]Change
	now     func() time.Time
}

// NewManager returns an empty manager.
func NewManager() *Manager {
	return &Manager{
		pending: make(map[string]Change),
		now:     time.Now,
	}
}

// Propose parks a change for the user and returns its short id.
func (m *Manager) Propose(user, field, oldValue, newValue string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()[:8]
	m.pending[user] = Change{
		ID:       id,
		Field:    field,
		OldValue: oldValue,
		NewValue: newValue,
		Created:  m.now(),
	}
	return id
}

// Pending reports whether the user has a change awaiting confirmation.
func (m *Manager) Pending(user string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.pending[user]
	return ok
}

// Peek returns the pending change without resolving it.
func (m *Manager) Peek(user string) (Change, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.pending[user]
	return c, ok
}

// Resolve removes and returns the pending change. The caller decides what
// to do with it based on the detected response.
func (m *Manager) Resolve(user string) (Change, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.pending[user]
	if ok {
		delete(m.pending, user)
	}
	return c, ok
}

// Clear drops any pending change without processing it.
func (m *Manager) Clear(user string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, user)
}
