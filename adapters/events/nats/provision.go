package nats

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/transport"
	"github.com/nats-io/nats.go"
)

// NewStreamConfig builds the interest-retention stream for topology: a
// message stays until every queue bound to its subject has acked it.
func NewStreamConfig(name string, topology transport.Topology) *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:       name,
		Subjects:   streamSubjects(topology),
		Retention:  nats.InterestPolicy,
		Storage:    nats.FileStorage,
		Duplicates: DefaultDuplicatesWindow,
	}
}

// NewDeadLetterStreamConfig builds the stream that keeps rejected messages.
func NewDeadLetterStreamConfig(name string, topology transport.Topology, maxAge time.Duration) *nats.StreamConfig {
	return &nats.StreamConfig{
		Name:      name + deadLetterStream,
		Subjects:  deadLetterSubjects(topology),
		Retention: nats.LimitsPolicy,
		Storage:   nats.FileStorage,
		MaxAge:    maxAge,
	}
}

// NewConsumerConfig builds the durable pull consumer of queue.
func (b *Broker) NewConsumerConfig(queue string, subjects []string) *nats.ConsumerConfig {
	return &nats.ConsumerConfig{
		Durable:        durableName(queue),
		Description:    queue,
		AckPolicy:      nats.AckExplicitPolicy,
		AckWait:        b.ackWait,
		MaxAckPending:  b.maxAckPending,
		DeliverPolicy:  nats.DeliverAllPolicy,
		FilterSubjects: subjects,
	}
}

// Provision implements transport.Provisioner. Existing streams and
// consumers are updated in place.
func (b *Broker) Provision(ctx context.Context, topology transport.Topology) error {
	if b.IsClosed() {
		return ErrNotConnected
	}
	if err := b.ensureStream(ctx, NewStreamConfig(b.stream, topology)); err != nil {
		return err
	}
	if err := b.ensureStream(ctx, NewDeadLetterStreamConfig(b.stream, topology, b.deadLetterMaxAge)); err != nil {
		return err
	}
	subjects := queueSubjects(topology)
	for _, queue := range slices.Sorted(maps.Keys(subjects)) {
		cfg := b.NewConsumerConfig(queue, subjects[queue])
		if _, err := b.js.AddConsumer(b.stream, cfg, nats.Context(ctx)); err != nil {
			if _, uerr := b.js.UpdateConsumer(b.stream, cfg, nats.Context(ctx)); uerr != nil {
				return errors.Join(err, uerr)
			}
		}
		b.logger.Info("JetStream consumer ready", log.String("queue", queue), log.Any("subjects", cfg.FilterSubjects))
	}
	return nil
}

func (b *Broker) ensureStream(ctx context.Context, cfg *nats.StreamConfig) error {
	if len(cfg.Subjects) == 0 {
		return nil
	}
	_, err := b.js.AddStream(cfg, nats.Context(ctx))
	if errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		_, err = b.js.UpdateStream(cfg, nats.Context(ctx))
	}
	if err != nil {
		b.logger.Error("JetStream stream provisioning failed", log.String("stream", cfg.Name), log.Err(err))
		return err
	}
	b.logger.Info("JetStream stream ready", log.String("stream", cfg.Name), log.Any("subjects", cfg.Subjects))
	return nil
}
