// Package nats is a JetStream transport.Broker. Provision declares one
// interest-retention stream for all topology subjects, a durable pull
// consumer per queue and a limits-retention stream holding dead letters.
// JetStream cannot hold messages back, so the broker does not implement
// transport.DelayedPublisher and timeouts fall back to in-process timers.
package nats

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/helpers"
	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"
)

// ErrNotConnected is returned when the connection is closed.
var ErrNotConnected = errors.New(ConnectionFailedMessage)

// Broker encapsulates the NATS connection, the JetStream context and an optional circuit breaker.
type Broker struct {
	nc               *nats.Conn
	js               nats.JetStreamContext
	mu               sync.Mutex
	logger           *log.Log
	loggerSet        bool
	breaker          *gobreaker.CircuitBreaker
	middlewares      []MiddlewareFunc
	connectOpts      []nats.Option
	subs             map[string]*nats.Subscription
	stream           string
	ackWait          time.Duration
	fetchWait        time.Duration
	maxAckPending    int
	deadLetterMaxAge time.Duration
	wg               sync.WaitGroup
}

// NewBroker connects to url and opens a JetStream context.
func NewBroker(url string, options ...Option) (*Broker, error) {
	b := &Broker{
		logger:           log.NewBasicLogger(helpers.IsProdEnvironment(), true),
		subs:             map[string]*nats.Subscription{},
		stream:           DefaultStreamName,
		ackWait:          DefaultAckWait,
		fetchWait:        DefaultFetchWait,
		maxAckPending:    DefaultMaxAckPending,
		deadLetterMaxAge: DefaultDeadLetterMaxAge,
	}
	for _, opt := range options {
		opt(b)
	}

	// Configure NATS options for reliability
	opts := append([]nats.Option{
		nats.MaxReconnects(DefaultMaxReconnects),
		nats.ReconnectWait(DefaultReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			b.logger.Error("NATS disconnected", log.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			b.logger.Info("NATS reconnected", log.Any("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			b.logger.Warn(constant.ConnectionClosed, log.String("broker", "nats"), log.Any("error", nc.LastError()))
		}),
	}, b.connectOpts...)

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to open JetStream context: %w", err)
	}
	b.nc = nc
	b.js = js
	return b, nil
}

// Ping reports whether the connection is usable.
func (b *Broker) Ping() error {
	if b.IsClosed() {
		return ErrNotConnected
	}
	return b.nc.FlushTimeout(time.Second)
}

// IsClosed reports whether the connection has been closed.
func (b *Broker) IsClosed() bool {
	return b.nc == nil || b.nc.IsClosed()
}

// Close stops every pull loop and drains the connection.
func (b *Broker) Close() error {
	if b.IsClosed() {
		return nil
	}
	b.mu.Lock()
	for queue, sub := range b.subs {
		_ = sub.Unsubscribe()
		delete(b.subs, queue)
	}
	b.mu.Unlock()

	err := b.nc.Drain()
	b.wg.Wait()
	if b.loggerSet {
		_ = b.logger.Sync()
	}
	return err
}
