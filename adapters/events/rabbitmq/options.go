package rabbitmq

import (
	"github.com/abhissng/relay/adapters/log"
	"github.com/sony/gobreaker"
)

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the broker logger.
func WithLogger(logger *log.Log) Option {
	return func(b *Broker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithCircuitBreaker guards every publish with cb.
func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(b *Broker) {
		b.breaker = cb
	}
}

// WithPrefetchCount sets how many unsettled deliveries a consumer may hold.
func WithPrefetchCount(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.prefetch = n
		}
	}
}
