package redis

import (
	"context"
	"errors"
	"time"

	"github.com/abhissng/relay/utils/codec"
	"github.com/abhissng/relay/utils/types"
)

const (
	sagaNamespace = "saga"
	indexKey      = "index"
)

// DefaultLenTimeout bounds the SCARD issued by SagaStore.Len.
const DefaultLenTimeout = 2 * time.Second

// SagaStore persists saga states of one saga. States are encoded with the
// configured codec; an index set tracks live correlation ids for Len.
type SagaStore[S any] struct {
	manager   *RedisManager
	saga      string
	codec     types.CodecType
	retention time.Duration
}

// SagaStoreOption configures a SagaStore.
type SagaStoreOption[S any] func(*SagaStore[S])

// WithCodec sets the state encoding. MsgPack by default.
func WithCodec[S any](c types.CodecType) SagaStoreOption[S] {
	return func(s *SagaStore[S]) { s.codec = c }
}

// WithStateRetention expires a state that has not been saved for d. Zero keeps states forever.
func WithStateRetention[S any](d time.Duration) SagaStoreOption[S] {
	return func(s *SagaStore[S]) { s.retention = d }
}

// NewSagaStore creates a store namespaced by the saga's name.
func NewSagaStore[S any](manager *RedisManager, saga string, opts ...SagaStoreOption[S]) *SagaStore[S] {
	s := &SagaStore[S]{manager: manager, saga: saga, codec: codec.MsgPack}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SagaStore[S]) stateKey(id string) string {
	return s.manager.Key(sagaNamespace, s.saga, id)
}

func (s *SagaStore[S]) indexKey() string {
	return s.manager.Key(sagaNamespace, s.saga, indexKey)
}

// Load implements saga.Store. An expired state also leaves the index.
func (s *SagaStore[S]) Load(ctx context.Context, correlationID string) (S, bool, error) {
	var zero S
	raw, err := s.manager.GetBytes(ctx, s.stateKey(correlationID))
	if errors.Is(err, ErrNotFound) {
		_ = s.manager.Client().SRem(ctx, s.indexKey(), correlationID).Err()
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	state, err := codec.Decode[S](raw, s.codec)
	if err != nil {
		return zero, false, err
	}
	return state, true, nil
}

// Save implements saga.Store.
func (s *SagaStore[S]) Save(ctx context.Context, correlationID string, state S) error {
	raw, err := codec.Encode(state, s.codec)
	if err != nil {
		return err
	}
	pipe := s.manager.Client().TxPipeline()
	pipe.Set(ctx, s.stateKey(correlationID), raw, s.retention)
	pipe.SAdd(ctx, s.indexKey(), correlationID)
	_, err = pipe.Exec(ctx)
	return err
}

// Delete implements saga.Store.
func (s *SagaStore[S]) Delete(ctx context.Context, correlationID string) error {
	pipe := s.manager.Client().TxPipeline()
	pipe.Del(ctx, s.stateKey(correlationID))
	pipe.SRem(ctx, s.indexKey(), correlationID)
	_, err := pipe.Exec(ctx)
	return err
}

// Len implements saga.Store. It may count states that expired but were not loaded since.
func (s *SagaStore[S]) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultLenTimeout)
	defer cancel()
	n, err := s.manager.Client().SCard(ctx, s.indexKey()).Result()
	if err != nil {
		return 0
	}
	return int(n)
}
