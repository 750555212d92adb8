// Package idempotency tracks message fingerprints that have already been handled.
package idempotency

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultCleanupInterval = 10 * time.Minute
	DefaultRetention       = 24 * time.Hour
)

// Store records fingerprints of handled messages.
type Store interface {
	// Seen reports whether fingerprint has been marked and not yet expired.
	Seen(ctx context.Context, fingerprint string) (bool, error)
	// Mark records fingerprint as handled.
	Mark(ctx context.Context, fingerprint string) error
}

// IdempotencyManager keeps fingerprints in memory. A background goroutine
// drops entries older than the retention window.
type IdempotencyManager[K comparable] struct {
	trackedEvents   map[K]time.Time
	mu              sync.Mutex
	retention       time.Duration
	cleanupInterval time.Duration
	done            chan struct{}
	closeOnce       sync.Once
	now             func() time.Time
}

// ManagerOption configures an IdempotencyManager.
type ManagerOption[K comparable] func(*IdempotencyManager[K])

// WithRetention sets how long a fingerprint is remembered.
func WithRetention[K comparable](retention time.Duration) ManagerOption[K] {
	return func(m *IdempotencyManager[K]) {
		if retention > 0 {
			m.retention = retention
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock[K comparable](now func() time.Time) ManagerOption[K] {
	return func(m *IdempotencyManager[K]) {
		m.now = now
	}
}

// NewIdempotencyManager creates a manager and starts its cleanup goroutine.
func NewIdempotencyManager[K comparable](cleanupInterval time.Duration, opts ...ManagerOption[K]) *IdempotencyManager[K] {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	manager := &IdempotencyManager[K]{
		trackedEvents:   make(map[K]time.Time),
		retention:       DefaultRetention,
		cleanupInterval: cleanupInterval,
		done:            make(chan struct{}),
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(manager)
	}
	go manager.startCleanup()
	return manager
}

func (m *IdempotencyManager[K]) startCleanup() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.cleanupProcessedMessages()
		}
	}
}

func (m *IdempotencyManager[K]) cleanupProcessedMessages() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for trackingID, timestamp := range m.trackedEvents {
		if now.Sub(timestamp) > m.retention {
			delete(m.trackedEvents, trackingID)
		}
	}
}

// MarkAsProcessed marks an event with the given trackingID as processed.
func (m *IdempotencyManager[K]) MarkAsProcessed(trackingID K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackedEvents[trackingID] = m.now()
}

// IsProcessed checks if an event with the given trackingID has already been processed.
func (m *IdempotencyManager[K]) IsProcessed(trackingID K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	timestamp, exists := m.trackedEvents[trackingID]
	return exists && m.now().Sub(timestamp) <= m.retention
}

// Len returns the number of tracked fingerprints.
func (m *IdempotencyManager[K]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.trackedEvents)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (m *IdempotencyManager[K]) Close() {
	m.closeOnce.Do(func() { close(m.done) })
}

// MemoryStore adapts an IdempotencyManager keyed by string to Store.
type MemoryStore struct {
	*IdempotencyManager[string]
}

// NewMemoryStore creates a Store backed by an in-process manager.
func NewMemoryStore(retention time.Duration) *MemoryStore {
	interval := DefaultCleanupInterval
	if retention > 0 && retention < interval {
		interval = retention
	}
	return &MemoryStore{NewIdempotencyManager(interval, WithRetention[string](retention))}
}

// Seen implements Store.
func (s *MemoryStore) Seen(_ context.Context, fingerprint string) (bool, error) {
	return s.IsProcessed(fingerprint), nil
}

// Mark implements Store.
func (s *MemoryStore) Mark(_ context.Context, fingerprint string) error {
	s.MarkAsProcessed(fingerprint)
	return nil
}
