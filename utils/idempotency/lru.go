package idempotency

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultLRUSize bounds the number of remembered fingerprints.
const DefaultLRUSize = 10_000

// LRUStore is a bounded Store: the oldest fingerprints are evicted first and
// every entry expires after ttl.
type LRUStore struct {
	lru *expirable.LRU[string, struct{}]
}

// NewLRUStore creates an LRUStore. size <= 0 uses DefaultLRUSize, ttl <= 0 never expires.
func NewLRUStore(size int, ttl time.Duration) *LRUStore {
	if size <= 0 {
		size = DefaultLRUSize
	}
	return &LRUStore{lru: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

// Seen implements Store.
func (s *LRUStore) Seen(_ context.Context, fingerprint string) (bool, error) {
	_, ok := s.lru.Peek(fingerprint)
	return ok, nil
}

// Mark implements Store.
func (s *LRUStore) Mark(_ context.Context, fingerprint string) error {
	s.lru.Add(fingerprint, struct{}{})
	return nil
}

// Len returns the number of live fingerprints.
func (s *LRUStore) Len() int {
	return s.lru.Len()
}
