// Package rabbitmq is an AMQP 0-9-1 transport.Broker. Destinations are
// fanout exchanges, queues dead-letter rejected messages to
// "<queue>.dead-letter" and destinations provisioned as delayed use the
// x-delayed-message exchange plugin.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/transport"
	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/helpers"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sony/gobreaker"
)

var (
	// ErrClosed is returned once the connection has gone away.
	ErrClosed = errors.New("rabbitmq connection closed")
	// ErrNotDelayed is returned when PublishDelayed targets a destination
	// that was not provisioned as delayed.
	ErrNotDelayed = errors.New("rabbitmq destination is not a delayed exchange")
	// ErrNotConfirmed is returned when the server nacks a publish.
	ErrNotConfirmed = errors.New("rabbitmq publish not confirmed")
)

// Broker holds one connection and a confirm-mode publishing channel.
// Every consumer opens its own channel.
type Broker struct {
	conn     *amqp.Connection
	pub      *amqp.Channel
	pubMu    sync.Mutex
	mu       sync.RWMutex
	logger   *log.Log
	breaker  *gobreaker.CircuitBreaker
	prefetch int
	// exchanges and delayed are filled by Provision
	exchanges map[string]struct{}
	delayed   map[string]struct{}
}

// NewBroker dials url and opens the publishing channel.
func NewBroker(url string, options ...Option) (*Broker, error) {
	b := &Broker{
		logger:    log.NewBasicLogger(helpers.IsProdEnvironment(), true),
		prefetch:  DefaultPrefetchCount,
		exchanges: map[string]struct{}{},
		delayed:   map[string]struct{}{},
	}
	for _, opt := range options {
		opt(b)
	}

	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: DefaultHeartbeat,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(DefaultDialTimeout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	pub, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	if err := pub.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable publisher confirms: %w", err)
	}
	b.conn = conn
	b.pub = pub

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		if err, ok := <-closed; ok && err != nil {
			b.logger.Error(constant.ConnectionClosed, log.String("broker", "rabbitmq"), log.Any("error", err))
		}
	}()
	return b, nil
}

// IsClosed reports whether the connection has gone away.
func (b *Broker) IsClosed() bool {
	return b.conn == nil || b.conn.IsClosed()
}

// Close closes the connection and with it every consumer channel.
func (b *Broker) Close() error {
	if b.IsClosed() {
		return nil
	}
	return b.conn.Close()
}

// route resolves a destination: provisioned exchanges get a fanout publish,
// anything else goes through the default exchange straight to a queue.
func (b *Broker) route(destination string) (exchange, key string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if _, ok := b.exchanges[destination]; ok {
		return destination, ""
	}
	return "", destination
}

func (b *Broker) isDelayed(destination string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.delayed[destination]
	return ok
}

// Publish implements transport.Publisher and waits for the publisher confirm.
func (b *Broker) Publish(ctx context.Context, destination string, msg transport.Message) error {
	return b.publish(ctx, destination, toPublishing(msg, 0))
}

// PublishBatch publishes msgs in order, stopping at the first failure.
func (b *Broker) PublishBatch(ctx context.Context, destination string, msgs []transport.Message) error {
	for _, msg := range msgs {
		if err := b.Publish(ctx, destination, msg); err != nil {
			return err
		}
	}
	return nil
}

// PublishDelayed implements transport.DelayedPublisher.
func (b *Broker) PublishDelayed(ctx context.Context, destination string, msg transport.Message, delay time.Duration) error {
	if !b.isDelayed(destination) {
		return ErrNotDelayed
	}
	return b.publish(ctx, destination, toPublishing(msg, delay))
}

func (b *Broker) publish(ctx context.Context, destination string, p amqp.Publishing) error {
	if b.IsClosed() {
		return ErrClosed
	}
	exchange, key := b.route(destination)
	err := b.guard(func() error {
		b.pubMu.Lock()
		confirm, err := b.pub.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, p)
		b.pubMu.Unlock()
		if err != nil {
			return err
		}
		ok, err := confirm.WaitContext(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNotConfirmed
		}
		return nil
	})
	if err != nil {
		b.logger.Error(constant.EventPublishedFailed, log.String("destination", destination),
			log.String(constant.MessageID, p.MessageId), log.Err(err))
		return err
	}
	b.logger.Debug(constant.EventPublished, log.String("destination", destination),
		log.String(constant.MessageID, p.MessageId))
	return nil
}

func (b *Broker) guard(fn func() error) error {
	if b.breaker == nil {
		return fn()
	}
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// Provision implements transport.Provisioner: it declares every queue with
// its dead-letter queue, one exchange per bound destination and the bindings.
func (b *Broker) Provision(ctx context.Context, topology transport.Topology) error {
	if b.IsClosed() {
		return ErrClosed
	}
	ch, err := b.conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	for _, q := range topologyQueues(topology) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := ch.QueueDeclare(deadLetterQueue(q), true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", deadLetterQueue(q), err)
		}
		if _, err := ch.QueueDeclare(q, true, false, false, false, queueArgs(q)); err != nil {
			return fmt.Errorf("declare %s: %w", q, err)
		}
	}

	for _, dest := range topologyExchanges(topology) {
		kind, args := DefaultExchangeType, amqp.Table(nil)
		if slices.Contains(topology.Delayed, dest) {
			kind, args = DelayedExchangeType, delayedExchangeArgs()
		}
		if err := ch.ExchangeDeclare(dest, kind, true, false, false, false, args); err != nil {
			return fmt.Errorf("declare exchange %s: %w", dest, err)
		}
		b.mu.Lock()
		b.exchanges[dest] = struct{}{}
		if kind == DelayedExchangeType {
			b.delayed[dest] = struct{}{}
		}
		b.mu.Unlock()
	}

	for _, binding := range topology.Bindings {
		if err := ch.QueueBind(binding.Queue, "", binding.Destination, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s: %w", binding.Queue, binding.Destination, err)
		}
		b.logger.Info("RabbitMQ binding ready", log.String("destination", binding.Destination), log.String("queue", binding.Queue))
	}
	return nil
}

// Consume implements transport.Consumer on a dedicated channel with QoS set
// to the prefetch count.
func (b *Broker) Consume(ctx context.Context, queue string) (<-chan transport.Delivery, error) {
	if b.IsClosed() {
		return nil, ErrClosed
	}
	ch, err := b.conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(b.prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, err
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		b.logger.Error(constant.QueueSubscribeFailed, log.String("queue", queue), log.Err(err))
		return nil, err
	}
	b.logger.Info(constant.QueueSubscribed, log.String("queue", queue), log.Int("prefetch", b.prefetch))

	out := make(chan transport.Delivery)
	go func() {
		defer close(out)
		defer func() { _ = ch.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case out <- &delivery{d: d}:
				case <-ctx.Done():
					// closing the channel returns the unacked delivery to the queue
					return
				}
			}
		}
	}()
	return out, nil
}
