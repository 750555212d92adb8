// Package saga drives correlation-keyed state machines. A Saga declares which
// message and timeout types it reacts to; an Orchestrator loads the state of
// the message's correlation id, runs the transition on a copy and, when it
// succeeds, publishes what the transition emitted and stores the new state.
package saga

import (
	"context"
	"slices"
	"time"

	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/envelope"
)

// State is implemented by saga state records. Clone must return a deep copy
// so a failed transition leaves the stored state untouched.
type State[S any] interface {
	Clone() S
}

type transition[S any] func(ctx context.Context, sc *Context[S]) error

// Saga is the static definition of one saga: its state factory, its
// transitions and its completion predicate.
type Saga[S State[S]] struct {
	name     string
	init     func() S
	handlers map[string]transition[S]
	timeouts []string
	complete func(S) bool
}

// New defines a saga. init returns the state of a fresh instance.
func New[S State[S]](name string, init func() S) *Saga[S] {
	return &Saga[S]{
		name:     name,
		init:     init,
		handlers: make(map[string]transition[S]),
		complete: func(S) bool { return false },
	}
}

// Name returns the saga name.
func (s *Saga[S]) Name() string { return s.name }

// CompleteWhen sets the predicate that marks an instance as finished.
func (s *Saga[S]) CompleteWhen(pred func(S) bool) *Saga[S] {
	if pred != nil {
		s.complete = pred
	}
	return s
}

// Types returns the message and timeout tags the saga handles, sorted.
func (s *Saga[S]) Types() []string {
	tags := make([]string, 0, len(s.handlers))
	for tag := range s.handlers {
		tags = append(tags, tag)
	}
	slices.Sort(tags)
	return tags
}

// Timeouts returns the timeout tags the saga handles.
func (s *Saga[S]) Timeouts() []string {
	return slices.Clone(s.timeouts)
}

// Handles reports whether the saga reacts to messageType.
func (s *Saga[S]) Handles(messageType string) bool {
	_, ok := s.handlers[messageType]
	return ok
}

// IsComplete applies the completion predicate.
func (s *Saga[S]) IsComplete(state S) bool {
	return s.complete(state)
}

// On registers the transition for message type M.
func On[S State[S], M envelope.Message](s *Saga[S], fn func(ctx context.Context, sc *Context[S], msg M) error) error {
	var zero M
	tag := zero.MessageType()
	if _, ok := s.handlers[tag]; ok {
		return blame.DuplicateRegistrationError(tag)
	}
	s.handlers[tag] = func(ctx context.Context, sc *Context[S]) error {
		msg, err := envelope.BodyAs[M](sc.trigger)
		if err != nil {
			return err
		}
		return fn(ctx, sc, msg)
	}
	return nil
}

// OnTimeout registers the transition for timeout type M. A timeout is
// delivered like any other message; the handler must re-check the state since
// the condition it guards may already hold.
func OnTimeout[S State[S], M envelope.Message](s *Saga[S], fn func(ctx context.Context, sc *Context[S], msg M) error) error {
	if err := On(s, fn); err != nil {
		return err
	}
	var zero M
	s.timeouts = append(s.timeouts, zero.MessageType())
	return nil
}

type timeoutRequest struct {
	env   envelope.Envelope
	after time.Duration
}

// Context is handed to a transition. It exposes the working copy of the
// state and collects the envelopes and timeouts to emit on success.
type Context[S any] struct {
	state    S
	created  bool
	trigger  envelope.Envelope
	sends    []envelope.Envelope
	timeouts []timeoutRequest
	ignored  bool
}

// State returns the working copy of the state.
func (c *Context[S]) State() S { return c.state }

// SetState replaces the working copy.
func (c *Context[S]) SetState(state S) { c.state = state }

// Created reports whether this message started the instance.
func (c *Context[S]) Created() bool { return c.created }

// Message returns the triggering envelope.
func (c *Context[S]) Message() envelope.Envelope { return c.trigger }

// CorrelationID returns the id of the instance.
func (c *Context[S]) CorrelationID() string { return c.trigger.CorrelationID() }

// Send queues bodies for publication, each correlated with the trigger.
func (c *Context[S]) Send(bodies ...envelope.Message) {
	for _, body := range bodies {
		c.sends = append(c.sends, envelope.CorrelateWith(c.trigger, body))
	}
}

// RequestTimeout queues body to come back to the saga after the given delay.
func (c *Context[S]) RequestTimeout(body envelope.Message, after time.Duration) {
	c.timeouts = append(c.timeouts, timeoutRequest{env: envelope.CorrelateWith(c.trigger, body), after: after})
}

// Ignore drops the message: nothing is emitted and the state is not saved.
func (c *Context[S]) Ignore() { c.ignored = true }

// Sent returns the envelopes queued so far.
func (c *Context[S]) Sent() []envelope.Envelope { return slices.Clone(c.sends) }
