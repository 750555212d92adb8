// Package memory is an in-process broker with queue semantics close to a
// real one: bindings fan a destination out to queues, a consumer holds one
// unsettled delivery at a time, requeued messages come back flagged as
// redelivered and rejected messages land in a per-queue dead-letter list.
package memory

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/abhissng/relay/transport"
)

var (
	// ErrClosed is returned once the broker has been closed.
	ErrClosed = errors.New("memory broker closed")
	// ErrAlreadySettled is returned when a delivery is acked or nacked twice.
	ErrAlreadySettled = errors.New("delivery already settled")
)

// AbandonGrace is how long a cancelled consumer may still settle its
// outstanding delivery before the broker returns it to the queue.
const AbandonGrace = 250 * time.Millisecond

type entry struct {
	msg         transport.Message
	redelivered bool
}

type queue struct {
	mu     sync.Mutex
	items  []entry
	notify chan struct{}
}

func newQueue() *queue {
	return &queue{notify: make(chan struct{}, 1)}
}

func (q *queue) push(e entry, front bool) {
	q.mu.Lock()
	if front {
		q.items = slices.Insert(q.items, 0, e)
	} else {
		q.items = append(q.items, e)
	}
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *queue) pop(ctx context.Context, done <-chan struct{}) (entry, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			e := q.items[0]
			q.items = q.items[1:]
			remaining := len(q.items)
			q.mu.Unlock()
			if remaining > 0 {
				// keep other consumers of the same queue awake
				select {
				case q.notify <- struct{}{}:
				default:
				}
			}
			return e, true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-ctx.Done():
			return entry{}, false
		case <-done:
			return entry{}, false
		}
	}
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Broker is an in-memory transport.Broker and transport.DelayedPublisher.
type Broker struct {
	mu       sync.Mutex
	bindings map[string][]string
	queues   map[string]*queue
	dead     map[string][]transport.Message
	timers   map[*time.Timer]struct{}
	closed   bool
	done     chan struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{
		bindings: map[string][]string{},
		queues:   map[string]*queue{},
		dead:     map[string][]transport.Message{},
		timers:   map[*time.Timer]struct{}{},
		done:     make(chan struct{}),
	}
}

// Bind routes messages published to destination into queue. A destination
// without bindings delivers to the queue of the same name.
func (b *Broker) Bind(destination, queue string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !slices.Contains(b.bindings[destination], queue) {
		b.bindings[destination] = append(b.bindings[destination], queue)
	}
	b.queueLocked(queue)
}

func (b *Broker) queueLocked(name string) *queue {
	q, ok := b.queues[name]
	if !ok {
		q = newQueue()
		b.queues[name] = q
	}
	return q
}

func cloneMessage(msg transport.Message) transport.Message {
	msg.Headers = maps.Clone(msg.Headers)
	msg.Body = slices.Clone(msg.Body)
	return msg
}

// Publish implements transport.Publisher.
func (b *Broker) Publish(ctx context.Context, destination string, msg transport.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	targets := b.bindings[destination]
	if len(targets) == 0 {
		targets = []string{destination}
	}
	queues := make([]*queue, 0, len(targets))
	for _, name := range targets {
		queues = append(queues, b.queueLocked(name))
	}
	b.mu.Unlock()

	for _, q := range queues {
		q.push(entry{msg: cloneMessage(msg)}, false)
	}
	return nil
}

// PublishBatch implements transport.Publisher.
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
	if delay <= 0 {
		return b.Publish(ctx, destination, msg)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	msg = cloneMessage(msg)
	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		b.mu.Lock()
		delete(b.timers, timer)
		b.mu.Unlock()
		_ = b.Publish(context.Background(), destination, msg)
	})
	b.timers[timer] = struct{}{}
	return nil
}

// Consume implements transport.Consumer. At most one delivery per call is
// outstanding; the next is handed out once the previous one is settled.
func (b *Broker) Consume(ctx context.Context, queueName string) (<-chan transport.Delivery, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrClosed
	}
	q := b.queueLocked(queueName)
	b.mu.Unlock()

	out := make(chan transport.Delivery)
	go func() {
		defer close(out)
		for {
			e, ok := q.pop(ctx, b.done)
			if !ok {
				return
			}
			d := &delivery{broker: b, queue: queueName, q: q, entry: e, settled: make(chan struct{})}
			select {
			case out <- d:
			case <-ctx.Done():
				q.push(e, true)
				return
			case <-b.done:
				return
			}
			select {
			case <-d.settled:
			case <-ctx.Done():
				d.abandonAfter(AbandonGrace, b.done)
				return
			case <-b.done:
				return
			}
		}
	}()
	return out, nil
}

func (b *Broker) deadLetter(queueName string, msg transport.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dead[queueName] = append(b.dead[queueName], msg)
}

// DeadLetters returns the messages rejected from queue.
func (b *Broker) DeadLetters(queueName string) []transport.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.dead[queueName])
}

// Len returns the number of messages waiting in queue.
func (b *Broker) Len(queueName string) int {
	b.mu.Lock()
	q, ok := b.queues[queueName]
	b.mu.Unlock()
	if !ok {
		return 0
	}
	return q.len()
}

// PendingDelayed returns the number of delayed messages not yet published.
func (b *Broker) PendingDelayed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.timers)
}

// Close stops consumers and drops pending delayed messages.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for t := range b.timers {
		t.Stop()
	}
	clear(b.timers)
	close(b.done)
	return nil
}

type delivery struct {
	broker  *Broker
	queue   string
	q       *queue
	entry   entry
	mu      sync.Mutex
	done    bool
	settled chan struct{}
}

func (d *delivery) Message() transport.Message { return d.entry.msg }

func (d *delivery) Redelivered() bool { return d.entry.redelivered }

func (d *delivery) settle(fn func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done {
		return ErrAlreadySettled
	}
	d.done = true
	fn()
	close(d.settled)
	return nil
}

func (d *delivery) Ack(context.Context) error {
	return d.settle(func() {})
}

func (d *delivery) Nack(_ context.Context, requeue bool) error {
	return d.settle(func() {
		if requeue {
			d.q.push(entry{msg: d.entry.msg, redelivered: true}, true)
			return
		}
		d.broker.deadLetter(d.queue, d.entry.msg)
	})
}

// abandon returns an unsettled delivery to its queue, as a broker does when a
// consumer goes away without acknowledging.
func (d *delivery) abandon() {
	_ = d.settle(func() {
		d.q.push(entry{msg: d.entry.msg, redelivered: true}, true)
	})
}

// abandonAfter gives an in-flight handler grace to settle the delivery itself
// so an ack racing the cancellation does not cause a redelivery.
func (d *delivery) abandonAfter(grace time.Duration, done <-chan struct{}) {
	t := time.NewTimer(grace)
	defer t.Stop()
	select {
	case <-d.settled:
		return
	case <-done:
		return
	case <-t.C:
	}
	d.abandon()
}

// Provision implements transport.Provisioner.
func (b *Broker) Provision(_ context.Context, topology transport.Topology) error {
	b.mu.Lock()
	for _, q := range topology.Queues {
		b.queueLocked(q)
	}
	b.mu.Unlock()
	for _, binding := range topology.Bindings {
		b.Bind(binding.Destination, binding.Queue)
	}
	return nil
}
