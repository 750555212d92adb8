package handler

import (
	"time"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/serializer"
	"github.com/abhissng/relay/transport"
	"github.com/abhissng/relay/utils/idempotency"
)

// Defaults of the canonical pipeline.
const (
	DefaultMaxRetries = 3
	DefaultRetryWait  = 100 * time.Millisecond
)

type pipelineConfig struct {
	logger          *log.Log
	metrics         Metrics
	store           idempotency.Store
	idempotencyOpts []IdempotencyOption
	retry           RetryConfig
	extra           []Middleware[envelope.Envelope]
}

// PipelineOption configures NewPipeline.
type PipelineOption func(*pipelineConfig)

// WithLogger sets the logger shared by every link.
func WithLogger(logger *log.Log) PipelineOption {
	return func(c *pipelineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink shared by every link.
func WithMetrics(m Metrics) PipelineOption {
	return func(c *pipelineConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithIdempotencyStore replaces the in-memory LRU store.
func WithIdempotencyStore(store idempotency.Store, opts ...IdempotencyOption) PipelineOption {
	return func(c *pipelineConfig) {
		if store != nil {
			c.store = store
		}
		c.idempotencyOpts = append(c.idempotencyOpts, opts...)
	}
}

// WithRetry sets the retry budget and wait.
func WithRetry(maxRetries int, wait time.Duration) PipelineOption {
	return func(c *pipelineConfig) {
		c.retry.MaxRetries = maxRetries
		c.retry.Wait = wait
	}
}

// WithShouldRetry replaces blame.IsRetryable as retry classifier.
func WithShouldRetry(fn func(error) bool) PipelineOption {
	return func(c *pipelineConfig) { c.retry.ShouldRetry = fn }
}

// WithMiddleware inserts extra links between retry and dispatch.
func WithMiddleware(m ...Middleware[envelope.Envelope]) PipelineOption {
	return func(c *pipelineConfig) { c.extra = append(c.extra, m...) }
}

// NewPipeline builds the canonical chain in front of dispatch:
// deserialize, idempotency, logging, retry, then any extra middleware.
func NewPipeline(s *serializer.Serializer, dispatch Handler[envelope.Envelope], opts ...PipelineOption) Handler[transport.Message] {
	cfg := &pipelineConfig{
		logger:  log.NewNopLogger(),
		metrics: noopMetrics{},
		retry:   RetryConfig{MaxRetries: DefaultMaxRetries, Wait: DefaultRetryWait},
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.store == nil {
		cfg.store = idempotency.NewLRUStore(idempotency.DefaultLRUSize, idempotency.DefaultRetention)
	}
	cfg.retry.Logger = cfg.logger
	cfg.retry.Metrics = cfg.metrics

	idemOpts := append([]IdempotencyOption{
		WithIdempotencyLogger(cfg.logger),
		WithIdempotencyMetrics(cfg.metrics),
	}, cfg.idempotencyOpts...)

	middlewares := append([]Middleware[envelope.Envelope]{
		Idempotency(cfg.store, idemOpts...),
		Logging(cfg.logger),
		Retry(cfg.retry),
	}, cfg.extra...)

	return Deserializing(s, Chain(dispatch, middlewares...))
}
