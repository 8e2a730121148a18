package components

import (
	"slices"
	"sync"
)

// identityLocks serializes work per identity. Entries are reference counted so the
// map only holds identities somebody is waiting on.
type identityLocks struct {
	mu    sync.Mutex
	locks map[string]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

func newIdentityLocks() *identityLocks {
	return &identityLocks{locks: make(map[string]*identityLock)}
}

// Lock acquires every distinct identity in sorted order and returns the release func.
func (l *identityLocks) Lock(identities ...string) (unlock func()) {
	keys := slices.Clone(identities)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	held := make([]*identityLock, 0, len(keys))
	for _, key := range keys {
		l.mu.Lock()
		lock, ok := l.locks[key]
		if !ok {
			lock = &identityLock{}
			l.locks[key] = lock
		}
		lock.refs++
		l.mu.Unlock()

		lock.mu.Lock()
		held = append(held, lock)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].mu.Unlock()

			l.mu.Lock()
			held[i].refs--
			if held[i].refs == 0 {
				delete(l.locks, keys[i])
			}
			l.mu.Unlock()
		}
	}
}

func (l *identityLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
