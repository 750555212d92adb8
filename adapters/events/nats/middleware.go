package nats

import (
	"context"

	"github.com/nats-io/nats.go"
)

// NATSMsgProcessor sends one prepared message.
type NATSMsgProcessor func(ctx context.Context, msg *nats.Msg) error

// MiddlewareFunc wraps a NATSMsgProcessor.
type MiddlewareFunc func(NATSMsgProcessor) NATSMsgProcessor

// applyMiddleware applies the middleware chain to a processor.
func applyMiddleware(processor NATSMsgProcessor, middlewares ...MiddlewareFunc) NATSMsgProcessor {
	// Apply in reverse order so that the first middleware in the list is executed first.
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			processor = middlewares[i](processor)
		}
	}
	return processor
}

// AddHeaderMiddleware returns a middleware that sets a header key/value on the message.
func AddHeaderMiddleware(key, value string) MiddlewareFunc {
	return func(next NATSMsgProcessor) NATSMsgProcessor {
		return func(ctx context.Context, msg *nats.Msg) error {
			if msg.Header == nil {
				msg.Header = nats.Header{}
			}
			msg.Header.Set(key, value)
			return next(ctx, msg)
		}
	}
}
