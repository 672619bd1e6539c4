package session

import "sync"

// Locks serializes turns per user. A second message arriving while one is
// still being processed gets a short "still working" reply instead of
// racing the first through the state machine.
type Locks struct {
	mu   sync.Mutex
	busy map[string]bool
}

// NewLocks builds an empty lock table.
func NewLocks() *Locks {
	return &Locks{busy: make(map[string]bool)}
}

// TryAcquire claims the user's turn slot. When it succeeds the caller
// must call the release function; when it fails a turn is already in
// flight.
func (l *Locks) TryAcquire(user string) (release func(), ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.busy[user] {
		return nil, false
	}
	l.busy[user] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.busy, user)
	}, true
}
