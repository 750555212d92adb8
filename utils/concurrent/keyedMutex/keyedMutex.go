// Package keyedMutex serialises work per key using a fixed set of striped locks.
package keyedMutex

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultStripes is the number of locks used when none is given.
const DefaultStripes = 256

// KeyedMutex maps keys onto a fixed pool of mutexes. Two different keys may
// share a stripe, the same key always does.
type KeyedMutex struct {
	stripes []sync.Mutex
}

// New creates a KeyedMutex with n stripes.
func New(n int) *KeyedMutex {
	if n <= 0 {
		n = DefaultStripes
	}
	return &KeyedMutex{stripes: make([]sync.Mutex, n)}
}

func (k *KeyedMutex) stripe(key string) *sync.Mutex {
	return &k.stripes[xxhash.Sum64String(key)%uint64(len(k.stripes))]
}

// Lock acquires the lock for key and returns its unlock function.
func (k *KeyedMutex) Lock(key string) (unlock func()) {
	m := k.stripe(key)
	m.Lock()
	return m.Unlock
}

// WithLock runs fn while holding the lock for key.
func (k *KeyedMutex) WithLock(key string, fn func() error) error {
	unlock := k.Lock(key)
	defer unlock()
	return fn()
}
