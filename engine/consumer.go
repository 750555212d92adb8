// Package engine runs handler pipelines against broker queues and publishes
// envelopes through the serializer.
package engine

import (
	"context"
	"time"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/handler"
	"github.com/abhissng/relay/transport"
	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/types"
)

// Metrics receives delivery outcomes.
type Metrics interface {
	ObserveDelivery(queue string, outcome types.Outcome, elapsed time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) ObserveDelivery(string, types.Outcome, time.Duration) {}

// Consumer drains one queue sequentially through a handler.
//
// Settlement:
//   - success acks
//   - a failure on a first delivery requeues
//   - a failure on a redelivery rejects to the dead-letter route
//
// WithRejectPoison additionally rejects non-retryable failures on the first
// delivery.
type Consumer struct {
	broker       transport.Consumer
	queue        string
	handler      handler.Handler[transport.Message]
	logger       *log.Log
	metrics      Metrics
	rejectPoison bool
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithConsumerLogger sets the consumer logger.
func WithConsumerLogger(logger *log.Log) ConsumerOption {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithConsumerMetrics sets the outcome sink.
func WithConsumerMetrics(m Metrics) ConsumerOption {
	return func(c *Consumer) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithRejectPoison rejects a non-retryable failure without waiting for a
// redelivery.
func WithRejectPoison() ConsumerOption {
	return func(c *Consumer) { c.rejectPoison = true }
}

// NewConsumer binds h to queue.
func NewConsumer(broker transport.Consumer, queue string, h handler.Handler[transport.Message], opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		broker:  broker,
		queue:   queue,
		handler: h,
		logger:  log.NewNopLogger(),
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(log.String("queue", queue))
	return c
}

// Queue returns the consumed queue name.
func (c *Consumer) Queue() string {
	return c.queue
}

// Run consumes until ctx ends or the delivery channel closes. Cancellation is
// a clean stop and returns nil.
func (c *Consumer) Run(ctx context.Context) error {
	deliveries, err := c.broker.Consume(ctx, c.queue)
	if err != nil {
		return blame.SubscribeToQueueError(c.queue, err)
	}
	c.logger.Info(constant.QueueSubscribed)

	for d := range deliveries {
		c.process(ctx, d)
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, d transport.Delivery) {
	msg := d.Message()
	fields := []log.Field{
		log.String("type", msg.Type),
		log.String(constant.MessageID, msg.MessageID),
		log.String(constant.CorrelationID, msg.CorrelationID),
		log.Bool("redelivered", d.Redelivered()),
	}

	start := time.Now()
	err := c.safeHandle(ctx, msg)
	outcome := c.decide(ctx, d, err)

	// settle even when the run context is already cancelled
	settleCtx := context.WithoutCancel(ctx)
	var settleErr error
	switch outcome {
	case constant.Acked:
		settleErr = d.Ack(settleCtx)
	case constant.Requeued:
		settleErr = d.Nack(settleCtx, true)
	default:
		settleErr = d.Nack(settleCtx, false)
	}
	elapsed := time.Since(start)
	c.metrics.ObserveDelivery(c.queue, outcome, elapsed)

	if settleErr != nil {
		c.logger.Error(constant.LibraryError, append(fields,
			log.Err(blame.AcknowledgeError(msg.MessageID, outcome, settleErr)))...)
		return
	}

	fields = append(fields, log.String("outcome", outcome.String()), log.Duration("elapsed", elapsed))
	switch outcome {
	case constant.Acked:
		c.logger.Info(constant.MessageProcessed, fields...)
	case constant.Requeued:
		c.logger.Warn(constant.MessageRequeued, append(fields, log.Err(err))...)
	default:
		c.logger.Error(constant.MessageRejected, append(fields, log.Err(err))...)
	}
}

func (c *Consumer) decide(ctx context.Context, d transport.Delivery, err error) types.Outcome {
	switch {
	case err == nil:
		return constant.Acked
	case ctx.Err() != nil:
		// interrupted by shutdown, not by the message
		return constant.Requeued
	case c.rejectPoison && !blame.IsRetryable(err):
		return constant.Rejected
	case d.Redelivered():
		return constant.Rejected
	default:
		return constant.Requeued
	}
}

func (c *Consumer) safeHandle(ctx context.Context, msg transport.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error(constant.HandlerPanicked, log.String(constant.MessageID, msg.MessageID), log.Any("panic", r))
			err = blame.HandlerPanickedError(msg.MessageID, r)
		}
	}()
	return c.handler.Handle(ctx, msg)
}
