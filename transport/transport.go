// Package transport defines the broker collaborator the pipeline consumes.
// Concrete brokers live under adapters/events and transport/memory.
package transport

import (
	"context"
	"time"
)

// Message is the wire form of an envelope: transport properties plus body bytes.
type Message struct {
	Type          string
	ContentType   string
	CorrelationID string
	MessageID     string
	Headers       map[string]string
	Body          []byte
}

// Delivery is one received message awaiting settlement.
type Delivery interface {
	Message() Message
	// Redelivered reports whether the broker has delivered this message before.
	Redelivered() bool
	Ack(ctx context.Context) error
	// Nack with requeue=false rejects the message to the queue's dead-letter route.
	Nack(ctx context.Context, requeue bool) error
}

// Publisher sends messages to a destination (exchange, subject or queue name).
type Publisher interface {
	Publish(ctx context.Context, destination string, msg Message) error
	PublishBatch(ctx context.Context, destination string, msgs []Message) error
}

// DelayedPublisher is implemented by brokers that can hold a message back.
type DelayedPublisher interface {
	PublishDelayed(ctx context.Context, destination string, msg Message, delay time.Duration) error
}

// Consumer hands out deliveries of a queue. The channel closes when ctx ends
// or the broker connection goes away.
type Consumer interface {
	Consume(ctx context.Context, queue string) (<-chan Delivery, error)
}

// Broker is both sides of the collaborator.
type Broker interface {
	Publisher
	Consumer
	Close() error
}

// Binding routes a destination into a queue.
type Binding struct {
	Destination string
	Queue       string
}

// Topology lists what a broker must provide before consumers start.
type Topology struct {
	Queues   []string
	Bindings []Binding
	// Delayed names the destinations that hold messages back.
	Delayed []string
}

// Provisioner is implemented by brokers that can declare a Topology.
type Provisioner interface {
	Provision(ctx context.Context, topology Topology) error
}
