package trainer

import "sync"

// sessionLocks serializes events per session: each action runs to completion
// before the next one for the same session starts, while distinct sessions
// proceed fully in parallel. Entries are never evicted; the registry grows
// with the number of sessions seen by this process.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire blocks until the session's lock is held and returns the release
// func.
func (l *sessionLocks) acquire(sessionID string) func() {
	l.mu.Lock()
	lock, ok := l.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[sessionID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
