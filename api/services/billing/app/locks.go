package app

import "sync"

// accountLocks serializes lifecycle operations per account. Entries are
// reference counted and dropped once no goroutine holds or waits on them.
type accountLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newAccountLocks() *accountLocks {
	return &accountLocks{entries: make(map[string]*lockEntry)}
}

// lock blocks until the account is free and returns its unlock func.
func (l *accountLocks) lock(accountID string) func() {
	l.mu.Lock()
	e, ok := l.entries[accountID]
	if !ok {
		e = &lockEntry{}
		l.entries[accountID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, accountID)
		}
		l.mu.Unlock()
	}
}

func (l *accountLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
