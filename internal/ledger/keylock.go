package ledger

import "sync"

type keyLockEntry struct {
	mu   sync.Mutex
	refs int
}

// keyLocks is a set of mutexes created on demand per key and released when unused.
type keyLocks[K comparable] struct {
	mu      sync.Mutex
	entries map[K]*keyLockEntry
}

func newKeyLocks[K comparable]() *keyLocks[K] {
	return &keyLocks[K]{
		mu:      sync.Mutex{},
		entries: make(map[K]*keyLockEntry),
	}
}

// lock blocks until the key is free and returns the function releasing it.
func (k *keyLocks[K]) lock(key K) func() {
	k.mu.Lock()

	entry, ok := k.entries[key]
	if !ok {
		entry = &keyLockEntry{mu: sync.Mutex{}, refs: 0}
		k.entries[key] = entry
	}

	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once

	return func() {
		once.Do(func() {
			entry.mu.Unlock()

			k.mu.Lock()
			entry.refs--

			if entry.refs == 0 {
				delete(k.entries, key)
			}
			k.mu.Unlock()
		})
	}
}

// size returns the number of keys currently held or waited on.
func (k *keyLocks[K]) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	return len(k.entries)
}
