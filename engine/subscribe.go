package engine

import (
	"github.com/abhissng/relay/handler"
	"github.com/abhissng/relay/transport"
)

// SubEntry is one queue and the pipeline that serves it.
type SubEntry struct {
	Queue   string
	Handler handler.Handler[transport.Message]
	Options []ConsumerOption
}

// Subscriptions is a list of queue consumers. Build it with NewSubscriptions
// and AddSubscriber, then hand it to Host.Subscribe.
type Subscriptions struct {
	prefix  string
	options []ConsumerOption
	entries []SubEntry
}

// SubscriptionsOption configures the whole subscription set.
type SubscriptionsOption func(s *Subscriptions)

// WithQueuePrefix prefixes every queue name of the set, e.g. per environment.
func WithQueuePrefix(prefix string) SubscriptionsOption {
	return func(s *Subscriptions) { s.prefix = prefix }
}

// WithDefaultConsumerOptions applies opts to every entry before its own options.
func WithDefaultConsumerOptions(opts ...ConsumerOption) SubscriptionsOption {
	return func(s *Subscriptions) { s.options = append(s.options, opts...) }
}

// NewSubscriptions starts an empty subscription set.
func NewSubscriptions(options ...SubscriptionsOption) *Subscriptions {
	s := &Subscriptions{entries: make([]SubEntry, 0)}
	for _, apply := range options {
		apply(s)
	}
	return s
}

// AddSubscriber adds a queue consumer and returns s for chaining.
func (s *Subscriptions) AddSubscriber(queue string, h handler.Handler[transport.Message], options ...ConsumerOption) *Subscriptions {
	s.entries = append(s.entries, SubEntry{Queue: queue, Handler: h, Options: options})
	return s
}

// Entries returns the entries with the set's prefix and default options applied.
func (s *Subscriptions) Entries() []SubEntry {
	out := make([]SubEntry, 0, len(s.entries))
	for _, e := range s.entries {
		opts := append(append([]ConsumerOption{}, s.options...), e.Options...)
		out = append(out, SubEntry{Queue: s.prefix + e.Queue, Handler: e.Handler, Options: opts})
	}
	return out
}
