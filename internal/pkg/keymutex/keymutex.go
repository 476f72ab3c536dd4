package keymutex

import "sync"

// KeyMutex serializes work per key. Verification attempts for the same
// (operator, subject) must not race on the attempt counter.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func New() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*refLock)}
}

// Lock acquires the mutex for key, creating it on first use.
func (k *KeyMutex) Lock(key string) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()
	l.mu.Lock()
}

// Unlock releases the mutex for key and drops it once unused.
func (k *KeyMutex) Unlock(key string) {
	k.mu.Lock()
	l, ok := k.locks[key]
	if ok {
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
	}
	k.mu.Unlock()
	if ok {
		l.mu.Unlock()
	}
}
