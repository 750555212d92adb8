package saga

import (
	"context"
	"time"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/utils/concurrent/concurrentMap"
	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/schedule"
)

// Store keeps one saga state per correlation id.
type Store[S any] interface {
	Load(ctx context.Context, correlationID string) (state S, found bool, err error)
	Save(ctx context.Context, correlationID string, state S) error
	Delete(ctx context.Context, correlationID string) error
	Len() int
}

// Defaults of MemoryStore.
const (
	DefaultRetention     = 24 * time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

type record[S any] struct {
	state     S
	updatedAt time.Time
}

// MemoryStore is a process-local Store. Records untouched for longer than
// the retention window are evicted by a periodic sweep.
type MemoryStore[S any] struct {
	records       *concurrentMap.ConcurrentMap[string, record[S]]
	retention     time.Duration
	sweepInterval time.Duration
	logger        *log.Log
	now           func() time.Time
	sweeper       *schedule.Schedule
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*memoryStoreConfig)

type memoryStoreConfig struct {
	retention     time.Duration
	sweepInterval time.Duration
	logger        *log.Log
	now           func() time.Time
}

// WithRetention sets how long an untouched record is kept. Zero keeps records forever.
func WithRetention(d time.Duration) MemoryStoreOption {
	return func(c *memoryStoreConfig) { c.retention = d }
}

// WithSweepInterval sets how often expired records are evicted.
func WithSweepInterval(d time.Duration) MemoryStoreOption {
	return func(c *memoryStoreConfig) {
		if d > 0 {
			c.sweepInterval = d
		}
	}
}

// WithStoreLogger sets the logger reporting evictions.
func WithStoreLogger(logger *log.Log) MemoryStoreOption {
	return func(c *memoryStoreConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithStoreClock replaces time.Now, for tests.
func WithStoreClock(now func() time.Time) MemoryStoreOption {
	return func(c *memoryStoreConfig) { c.now = now }
}

// NewMemoryStore creates a store and starts its sweep when retention is set.
func NewMemoryStore[S any](opts ...MemoryStoreOption) *MemoryStore[S] {
	cfg := &memoryStoreConfig{
		retention:     DefaultRetention,
		sweepInterval: DefaultSweepInterval,
		logger:        log.NewNopLogger(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	s := &MemoryStore[S]{
		records:       concurrentMap.NewConcurrentMap[string, record[S]](),
		retention:     cfg.retention,
		sweepInterval: cfg.sweepInterval,
		logger:        cfg.logger,
		now:           cfg.now,
	}
	if s.retention > 0 {
		s.sweeper = schedule.NewSchedule(schedule.ProcessorFunc(func(time.Time) { s.Sweep() }),
			schedule.WithName("saga-store-sweep"),
			schedule.WithInterval(s.sweepInterval),
			schedule.WithLogger(s.logger))
		s.sweeper.Run()
	}
	return s
}

// Load implements Store.
func (s *MemoryStore[S]) Load(_ context.Context, correlationID string) (S, bool, error) {
	r, ok := s.records.Get(correlationID)
	return r.state, ok, nil
}

// Save implements Store.
func (s *MemoryStore[S]) Save(_ context.Context, correlationID string, state S) error {
	s.records.Set(correlationID, record[S]{state: state, updatedAt: s.now()})
	return nil
}

// Delete implements Store.
func (s *MemoryStore[S]) Delete(_ context.Context, correlationID string) error {
	s.records.Delete(correlationID)
	return nil
}

// Len implements Store.
func (s *MemoryStore[S]) Len() int {
	return s.records.Len()
}

// Sweep evicts records older than the retention window and returns how many.
func (s *MemoryStore[S]) Sweep() int {
	if s.retention <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.retention)
	n := s.records.DeleteFunc(func(_ string, r record[S]) bool {
		return r.updatedAt.Before(cutoff)
	})
	if n > 0 {
		s.logger.Info(constant.SagaStoreEvicted, log.Int("evicted", n), log.Int("remaining", s.records.Len()))
	}
	return n
}

// Close stops the sweep.
func (s *MemoryStore[S]) Close() error {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	return nil
}
