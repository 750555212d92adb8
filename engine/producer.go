package engine

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/serializer"
	"github.com/abhissng/relay/transport"
	"github.com/abhissng/relay/utils/circuitBreaker"
	"github.com/abhissng/relay/utils/constant"
)

// Router maps a message type tag to a broker destination.
type Router func(messageType string) string

// Routes routes the listed tags and falls back to the tag itself.
func Routes(table map[string]string) Router {
	return func(messageType string) string {
		if dest, ok := table[messageType]; ok {
			return dest
		}
		return messageType
	}
}

// Producer serializes envelopes and publishes them behind a circuit breaker.
type Producer struct {
	serializer *serializer.Serializer
	publisher  transport.Publisher
	route      Router
	breaker    *gobreaker.CircuitBreaker
	logger     *log.Log
}

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

// WithRouter replaces the identity router.
func WithRouter(r Router) ProducerOption {
	return func(p *Producer) {
		if r != nil {
			p.route = r
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(cb *gobreaker.CircuitBreaker) ProducerOption {
	return func(p *Producer) {
		if cb != nil {
			p.breaker = cb
		}
	}
}

// WithProducerLogger sets the producer logger.
func WithProducerLogger(logger *log.Log) ProducerOption {
	return func(p *Producer) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProducer creates a producer publishing through publisher.
func NewProducer(s *serializer.Serializer, publisher transport.Publisher, opts ...ProducerOption) *Producer {
	p := &Producer{
		serializer: s,
		publisher:  publisher,
		route:      func(t string) string { return t },
		logger:     log.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.breaker == nil {
		p.breaker = circuitBreaker.NewCircuitBreaker(
			circuitBreaker.WithOnStateChange(func(name string, from, to gobreaker.State) {
				p.logger.Warn(constant.LibraryError, log.String("breaker", name),
					log.Stringer("from", from), log.Stringer("to", to))
			}),
		)
	}
	return p
}

// Start publishes body as the first message of a new business transaction.
// An empty correlationID mints one. The sent envelope is returned.
func (p *Producer) Start(ctx context.Context, body envelope.Message, correlationID string) (envelope.Envelope, error) {
	env := envelope.New(body, correlationID)
	return env, p.Send(ctx, env)
}

// Send publishes env to the destination routed from its type.
func (p *Producer) Send(ctx context.Context, env envelope.Envelope) error {
	msg, err := p.serializer.Marshal(env)
	if err != nil {
		return err
	}
	dest := p.route(env.Type())
	return p.guard(dest, env, func() error {
		return p.publisher.Publish(ctx, dest, msg)
	})
}

// SendAll publishes envs in order and stops at the first failure.
func (p *Producer) SendAll(ctx context.Context, envs ...envelope.Envelope) error {
	for _, env := range envs {
		if err := p.Send(ctx, env); err != nil {
			return err
		}
	}
	return nil
}

// CanDelay reports whether the publisher supports delayed delivery.
func (p *Producer) CanDelay() bool {
	_, ok := p.publisher.(transport.DelayedPublisher)
	return ok
}

// SendDelayed publishes env after delay. Brokers without delay support fail
// with a non-retryable error.
func (p *Producer) SendDelayed(ctx context.Context, env envelope.Envelope, delay time.Duration) error {
	dest := p.route(env.Type())
	delayed, ok := p.publisher.(transport.DelayedPublisher)
	if !ok {
		return blame.DelayedPublishUnsupportedError(dest, delay)
	}
	msg, err := p.serializer.Marshal(env)
	if err != nil {
		return err
	}
	return p.guard(dest, env, func() error {
		return delayed.PublishDelayed(ctx, dest, msg, delay)
	})
}

func (p *Producer) guard(dest string, env envelope.Envelope, publish func() error) error {
	_, err := p.breaker.Execute(func() (any, error) {
		return nil, publish()
	})
	fields := []log.Field{
		log.String("destination", dest),
		log.String("type", env.Type()),
		log.String(constant.MessageID, env.MessageID()),
		log.String(constant.CorrelationID, env.CorrelationID()),
	}
	if err != nil {
		p.logger.Error(constant.EventPublishedFailed, append(fields, log.Err(err))...)
		return blame.PublishMessageError(dest, err)
	}
	p.logger.Debug(constant.EventPublished, fields...)
	return nil
}
