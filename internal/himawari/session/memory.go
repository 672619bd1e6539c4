package session

import (
	"sync"
	"time"
)

// defaultTTL matches how long a half-finished request stays relevant in a
// chat: after five quiet minutes the user almost certainly moved on.
const defaultTTL = 5 * time.Minute

// MemoryStore keeps sessions in a mutex-guarded map with a freshness TTL.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore builds an empty store. ttl <= 0 selects the default.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns the user's session if it is still fresh. Stale sessions are
// dropped on the spot.
func (m *MemoryStore) Get(user string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[user]
	if !ok {
		return nil, false
	}
	if m.now().Sub(s.UpdatedAt) > m.ttl {
		delete(m.sessions, user)
		return nil, false
	}
	return s, true
}

// Put stores the session and stamps it fresh.
func (m *MemoryStore) Put(user string, s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.UpdatedAt = m.now()
	m.sessions[user] = s
}

// Delete forgets the user's session. Deleting an absent session is a
// no-op, which is what makes reset idempotent.
func (m *MemoryStore) Delete(user string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, user)
}
