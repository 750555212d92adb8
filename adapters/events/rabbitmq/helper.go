package rabbitmq

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/abhissng/relay/transport"
	amqp "github.com/rabbitmq/amqp091-go"
)

type delivery struct {
	d amqp.Delivery
}

func (d *delivery) Message() transport.Message { return fromDelivery(d.d) }

func (d *delivery) Redelivered() bool { return d.d.Redelivered }

func (d *delivery) Ack(context.Context) error { return d.d.Ack(false) }

// Nack with requeue=false routes the message through the queue's dead-letter exchange.
func (d *delivery) Nack(_ context.Context, requeue bool) error {
	return d.d.Nack(false, requeue)
}

func toPublishing(msg transport.Message, delay time.Duration) amqp.Publishing {
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	if delay > 0 {
		headers[headerDelay] = delay.Milliseconds()
	}
	return amqp.Publishing{
		Headers:       headers,
		ContentType:   msg.ContentType,
		DeliveryMode:  amqp.Persistent,
		CorrelationId: msg.CorrelationID,
		MessageId:     msg.MessageID,
		Type:          msg.Type,
		Timestamp:     time.Now().UTC(),
		Body:          msg.Body,
	}
}

func fromDelivery(d amqp.Delivery) transport.Message {
	msg := transport.Message{
		Type:          d.Type,
		ContentType:   d.ContentType,
		CorrelationID: d.CorrelationId,
		MessageID:     d.MessageId,
		Body:          slices.Clone(d.Body),
	}
	for k, v := range d.Headers {
		s, ok := v.(string)
		if !ok || k == headerDelay {
			continue
		}
		if msg.Headers == nil {
			msg.Headers = map[string]string{}
		}
		msg.Headers[k] = s
	}
	return msg
}

func deadLetterQueue(queue string) string {
	return queue + deadLetterSuffix
}

func queueArgs(queue string) amqp.Table {
	return amqp.Table{
		argDeadLetterExchange: "",
		argDeadLetterKey:      deadLetterQueue(queue),
	}
}

func delayedExchangeArgs() amqp.Table {
	return amqp.Table{argDelayedType: DefaultExchangeType}
}

func topologyQueues(topology transport.Topology) []string {
	set := map[string]struct{}{}
	for _, q := range topology.Queues {
		set[q] = struct{}{}
	}
	for _, b := range topology.Bindings {
		set[b.Queue] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

func topologyExchanges(topology transport.Topology) []string {
	set := map[string]struct{}{}
	for _, b := range topology.Bindings {
		set[b.Destination] = struct{}{}
	}
	for _, d := range topology.Delayed {
		set[d] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}
