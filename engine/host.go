package engine

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/handler"
	"github.com/abhissng/relay/transport"
	"github.com/abhissng/relay/utils/constant"
)

// Host runs one Consumer per queue. Queues are served concurrently, each
// queue sequentially.
type Host struct {
	broker    transport.Consumer
	logger    *log.Log
	metrics   Metrics
	mu        sync.Mutex
	consumers map[string]*Consumer
	order     []string
	cancel    context.CancelFunc
	done      chan struct{}
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithHostLogger sets the logger handed to every consumer.
func WithHostLogger(logger *log.Log) HostOption {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithHostMetrics sets the outcome sink handed to every consumer.
func WithHostMetrics(m Metrics) HostOption {
	return func(h *Host) {
		if m != nil {
			h.metrics = m
		}
	}
}

// NewHost creates a host on broker.
func NewHost(broker transport.Consumer, opts ...HostOption) *Host {
	h := &Host{
		broker:    broker,
		logger:    log.NewNopLogger(),
		metrics:   noopMetrics{},
		consumers: make(map[string]*Consumer),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Add registers a consumer for queue. A queue can be registered once.
func (h *Host) Add(queue string, pipeline handler.Handler[transport.Message], opts ...ConsumerOption) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.consumers[queue]; ok {
		return blame.AlreadySubscribedToQueueError(queue)
	}
	base := []ConsumerOption{WithConsumerLogger(h.logger), WithConsumerMetrics(h.metrics)}
	h.consumers[queue] = NewConsumer(h.broker, queue, pipeline, append(base, opts...)...)
	h.order = append(h.order, queue)
	return nil
}

// Subscribe adds every entry of subs. It stops at the first error.
func (h *Host) Subscribe(subs *Subscriptions) error {
	for _, e := range subs.Entries() {
		if err := h.Add(e.Queue, e.Handler, e.Options...); err != nil {
			h.logger.Error(constant.QueueSubscribeFailed, log.String("queue", e.Queue), log.Err(err))
			return err
		}
	}
	return nil
}

// Queues returns the registered queue names in registration order.
func (h *Host) Queues() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.order...)
}

// Run starts every consumer and blocks until ctx ends, Shutdown is called or
// one consumer fails to start. A start failure stops the other consumers.
func (h *Host) Run(ctx context.Context) error {
	h.mu.Lock()
	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})
	done := h.done
	consumers := make([]*Consumer, 0, len(h.order))
	for _, q := range h.order {
		consumers = append(consumers, h.consumers[q])
	}
	h.mu.Unlock()
	defer close(done)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range consumers {
		g.Go(func() error {
			return c.Run(gctx)
		})
	}
	h.logger.Info(constant.SystemStarted, log.Int("consumers", len(consumers)))
	err := g.Wait()
	h.logger.Info(constant.SystemStopped)
	return err
}

// Shutdown stops Run and waits for in-flight deliveries to settle or ctx to end.
func (h *Host) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
