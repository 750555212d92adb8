package nats

import (
	"context"
	"errors"
	"time"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/transport"
	"github.com/abhissng/relay/utils/constant"
	"github.com/nats-io/nats.go"
)

// delivery wraps one pulled JetStream message.
type delivery struct {
	broker *Broker
	queue  string
	msg    *nats.Msg
}

func (d *delivery) Message() transport.Message {
	return fromNatsMsg(d.msg)
}

func (d *delivery) Redelivered() bool {
	meta, err := d.msg.Metadata()
	if err != nil {
		return false
	}
	return meta.NumDelivered > 1
}

func (d *delivery) Ack(ctx context.Context) error {
	return d.msg.AckSync(nats.Context(ctx))
}

// Nack naks for redelivery, or copies the message to the queue's
// dead-letter subject and terminates it.
func (d *delivery) Nack(ctx context.Context, requeue bool) error {
	if requeue {
		return d.msg.Nak(nats.Context(ctx))
	}
	dead := nats.NewMsg(deadLetterSubject(d.queue))
	dead.Header = d.msg.Header
	dead.Header.Del(nats.MsgIdHdr)
	dead.Data = d.msg.Data
	if _, err := d.broker.js.PublishMsg(dead, nats.Context(ctx)); err != nil {
		return err
	}
	return d.msg.Term(nats.Context(ctx))
}

// Consume binds to the durable consumer Provision created for queue and
// pulls one message at a time until ctx ends or the connection closes.
func (b *Broker) Consume(ctx context.Context, queue string) (<-chan transport.Delivery, error) {
	if b.IsClosed() {
		return nil, ErrNotConnected
	}
	b.mu.Lock()
	if _, ok := b.subs[queue]; ok {
		b.mu.Unlock()
		return nil, errors.New("nats: queue " + queue + " already consumed")
	}
	durable := durableName(queue)
	sub, err := b.js.PullSubscribe("", durable, nats.Bind(b.stream, durable), nats.ManualAck())
	if err != nil {
		b.mu.Unlock()
		b.logger.Error(constant.QueueSubscribeFailed, log.String("queue", queue), log.Err(err))
		return nil, err
	}
	b.subs[queue] = sub
	b.mu.Unlock()
	b.logger.Info(constant.QueueSubscribed, log.String("queue", queue), log.String("durable", durable))

	out := make(chan transport.Delivery)
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer close(out)
		defer b.release(queue, sub)
		b.pull(ctx, queue, sub, out)
	}()
	return out, nil
}

func (b *Broker) pull(ctx context.Context, queue string, sub *nats.Subscription, out chan<- transport.Delivery) {
	for ctx.Err() == nil && sub.IsValid() {
		fetchCtx, cancel := context.WithTimeout(ctx, b.fetchWait)
		msgs, err := sub.Fetch(1, nats.Context(fetchCtx))
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, nats.ErrTimeout) {
				continue
			}
			if ctx.Err() == nil && sub.IsValid() {
				b.logger.Warn(constant.LibraryError, log.String("queue", queue), log.Err(err))
				select {
				case <-time.After(b.fetchWait):
				case <-ctx.Done():
				}
				continue
			}
			return
		}
		for _, m := range msgs {
			select {
			case out <- &delivery{broker: b, queue: queue, msg: m}:
			case <-ctx.Done():
				// unsettled: the server redelivers after AckWait
				return
			}
		}
	}
}

func (b *Broker) release(queue string, sub *nats.Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[queue] == sub {
		delete(b.subs, queue)
		_ = sub.Unsubscribe()
	}
}
