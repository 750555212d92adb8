package handler

import (
	"context"
	"slices"
	"sync"

	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/envelope"
)

// Dispatcher routes an envelope to the handlers registered for its type tag.
// Several handlers may share a tag; they run in registration order and the
// first failure stops the fan-out.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler[envelope.Envelope]
}

// NewDispatcher returns an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string][]Handler[envelope.Envelope])}
}

// Register adds handlers for messageType. Registering an empty list fails.
func (d *Dispatcher) Register(messageType string, handlers ...Handler[envelope.Envelope]) error {
	if len(handlers) == 0 {
		return blame.NoHandlerRegisteredError(messageType)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[messageType] = append(d.handlers[messageType], handlers...)
	return nil
}

// On registers a typed handler under the tag of T.
func On[T envelope.Message](d *Dispatcher, h Handler[T]) error {
	var zero T
	return d.Register(zero.MessageType(), Unwrap(h))
}

// OnEnvelope registers a typed handler that also receives the envelope.
func OnEnvelope[T envelope.Message](d *Dispatcher, fn func(ctx context.Context, env envelope.Envelope, body T) error) error {
	var zero T
	return d.Register(zero.MessageType(), UnwrapWithEnvelope(fn))
}

// Types returns the registered tags, sorted.
func (d *Dispatcher) Types() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	tags := make([]string, 0, len(d.handlers))
	for tag := range d.handlers {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

// Handle implements Handler.
func (d *Dispatcher) Handle(ctx context.Context, env envelope.Envelope) error {
	d.mu.RLock()
	handlers := d.handlers[env.Type()]
	d.mu.RUnlock()

	if len(handlers) == 0 {
		return blame.NoHandlerRegisteredError(env.Type())
	}
	for _, h := range handlers {
		if err := h.Handle(ctx, env); err != nil {
			return err
		}
	}
	return nil
}
