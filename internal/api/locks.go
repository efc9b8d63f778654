package api

import "sync"

// userLocks serializes message handling per user identifier. Distinct users
// proceed concurrently; two messages from the same user never interleave.
type userLocks struct {
	mu    sync.Mutex
	users map[string]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{users: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for userID, creating it on first use, and returns
// the release function. Lock entries are kept for the process lifetime; the
// user population is small and bounded.
func (l *userLocks) lock(userID string) (unlock func()) {
	l.mu.Lock()
	m, ok := l.users[userID]
	if !ok {
		m = &sync.Mutex{}
		l.users[userID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
