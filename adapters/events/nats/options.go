package nats

import (
	"time"

	"github.com/abhissng/relay/adapters/log"
	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"
)

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the broker logger.
func WithLogger(logger *log.Log) Option {
	return func(b *Broker) {
		if logger != nil {
			b.logger = logger
			b.loggerSet = true
		}
	}
}

// WithCircuitBreaker guards every publish with cb.
func WithCircuitBreaker(cb *gobreaker.CircuitBreaker) Option {
	return func(b *Broker) {
		b.breaker = cb
	}
}

// WithStreamName names the JetStream stream that Provision declares.
func WithStreamName(name string) Option {
	return func(b *Broker) {
		if name != "" {
			b.stream = name
		}
	}
}

// WithAckWait sets how long the server waits for a settlement before redelivering.
func WithAckWait(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.ackWait = d
		}
	}
}

// WithFetchWait sets how long one pull request blocks when the queue is empty.
func WithFetchWait(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.fetchWait = d
		}
	}
}

// WithMaxAckPending limits unsettled deliveries per queue.
func WithMaxAckPending(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.maxAckPending = n
		}
	}
}

// WithDeadLetterMaxAge sets how long rejected messages are kept.
func WithDeadLetterMaxAge(d time.Duration) Option {
	return func(b *Broker) {
		b.deadLetterMaxAge = d
	}
}

// WithPublishMiddleware wraps every outgoing message.
func WithPublishMiddleware(middlewares ...MiddlewareFunc) Option {
	return func(b *Broker) {
		b.middlewares = append(b.middlewares, middlewares...)
	}
}

// WithConnectOptions appends raw nats connection options.
func WithConnectOptions(opts ...nats.Option) Option {
	return func(b *Broker) {
		b.connectOpts = append(b.connectOpts, opts...)
	}
}
