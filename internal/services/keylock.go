package services

import "sync"

// KeyLock provides mutual exclusion per int64 key. Entries are reference
// counted and removed once no goroutine holds or waits on them, so the map
// stays bounded by the number of in-flight keys.
type KeyLock struct {
	mu    sync.Mutex
	locks map[int64]*keyEntry
}

type keyEntry struct {
	mu   sync.Mutex
	refs int
}

// NewKeyLock returns an empty KeyLock.
func NewKeyLock() *KeyLock {
	return &KeyLock{locks: make(map[int64]*keyEntry)}
}

// Lock blocks until key is held and returns the matching unlock func.
func (k *KeyLock) Lock(key int64) (unlock func()) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// size is used by tests.
func (k *KeyLock) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
