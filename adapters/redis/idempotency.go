package redis

import (
	"context"
	"time"

	"github.com/abhissng/relay/blame"
)

const fingerprintNamespace = "fingerprint"

// IdempotencyStore implements idempotency.Store with one expiring key per fingerprint.
type IdempotencyStore struct {
	manager   *RedisManager
	retention time.Duration
}

// NewIdempotencyStore keeps fingerprints for retention; zero keeps them forever.
func NewIdempotencyStore(manager *RedisManager, retention time.Duration) *IdempotencyStore {
	return &IdempotencyStore{manager: manager, retention: retention}
}

// Seen implements idempotency.Store.
func (s *IdempotencyStore) Seen(ctx context.Context, fingerprint string) (bool, error) {
	n, err := s.manager.Exists(ctx, s.manager.Key(fingerprintNamespace, fingerprint))
	if err != nil {
		return false, blame.IdempotencyStoreError("seen", err)
	}
	return n > 0, nil
}

// Mark implements idempotency.Store.
func (s *IdempotencyStore) Mark(ctx context.Context, fingerprint string) error {
	if err := s.manager.Set(ctx, s.manager.Key(fingerprintNamespace, fingerprint), 1, s.retention); err != nil {
		return blame.IdempotencyStoreError("mark", err)
	}
	return nil
}
