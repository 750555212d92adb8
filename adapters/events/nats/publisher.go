package nats

import (
	"context"
	"errors"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/transport"
	"github.com/abhissng/relay/utils/constant"
	"github.com/nats-io/nats.go"
)

// Publish implements transport.Publisher and waits for the stream's ack.
func (b *Broker) Publish(ctx context.Context, destination string, msg transport.Message) error {
	if b.IsClosed() {
		return ErrNotConnected
	}
	send := applyMiddleware(func(ctx context.Context, m *nats.Msg) error {
		_, err := b.js.PublishMsg(m, nats.Context(ctx))
		return err
	}, b.middlewares...)

	err := b.guard(func() error {
		return send(ctx, toNatsMsg(destination, msg))
	})
	if err != nil {
		b.logger.Error(constant.EventPublishedFailed, log.String("subject", destination),
			log.String(constant.MessageID, msg.MessageID), log.Err(err))
		return err
	}
	b.logger.Debug(constant.EventPublished, log.String("subject", destination),
		log.String(constant.MessageID, msg.MessageID))
	return nil
}

// PublishBatch publishes msgs asynchronously and waits for every ack.
func (b *Broker) PublishBatch(ctx context.Context, destination string, msgs []transport.Message) error {
	if b.IsClosed() {
		return ErrNotConnected
	}
	return b.guard(func() error {
		futures := make([]nats.PubAckFuture, 0, len(msgs))
		for _, msg := range msgs {
			f, err := b.js.PublishMsgAsync(toNatsMsg(destination, msg))
			if err != nil {
				return err
			}
			futures = append(futures, f)
		}
		var errs []error
		for _, f := range futures {
			select {
			case <-f.Ok():
			case err := <-f.Err():
				errs = append(errs, err)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return errors.Join(errs...)
	})
}

func (b *Broker) guard(fn func() error) error {
	if b.breaker == nil {
		return fn()
	}
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}
