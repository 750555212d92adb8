package handler

import (
	"context"

	"github.com/abhissng/relay/envelope"
)

// Unwrap adapts a typed handler to envelopes by extracting the body.
// A body of another type fails with a non-retryable mismatch error.
func Unwrap[T any](h Handler[T]) Handler[envelope.Envelope] {
	return HandlerFunc[envelope.Envelope](func(ctx context.Context, env envelope.Envelope) error {
		body, err := envelope.BodyAs[T](env)
		if err != nil {
			return err
		}
		return h.Handle(ctx, body)
	})
}

// UnwrapWithEnvelope is Unwrap for handlers that need the metadata too.
func UnwrapWithEnvelope[T any](fn func(ctx context.Context, env envelope.Envelope, body T) error) Handler[envelope.Envelope] {
	return HandlerFunc[envelope.Envelope](func(ctx context.Context, env envelope.Envelope) error {
		body, err := envelope.BodyAs[T](env)
		if err != nil {
			return err
		}
		return fn(ctx, env, body)
	})
}
