// Package handler composes the decorator chain that turns a raw delivery
// into a typed, deduplicated, retried and dispatched application call.
//
// The canonical order, outermost first, is
//
//	deserialize -> idempotency -> logging -> retry -> dispatch -> business handler
//
// and is what NewPipeline builds.
package handler

import (
	"context"
)

// Handler consumes one value of type T and either completes or fails.
type Handler[T any] interface {
	Handle(ctx context.Context, msg T) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[T any] func(ctx context.Context, msg T) error

// Handle implements Handler.
func (f HandlerFunc[T]) Handle(ctx context.Context, msg T) error {
	return f(ctx, msg)
}

// Middleware wraps a handler with a cross-cutting behaviour.
type Middleware[T any] func(next Handler[T]) Handler[T]

// Chain applies middlewares to h. The first middleware in the list is the
// outermost, so it runs first.
func Chain[T any](h Handler[T], middlewares ...Middleware[T]) Handler[T] {
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] != nil {
			h = middlewares[i](h)
		}
	}
	return h
}
