package engine_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/engine"
	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/handler"
	"github.com/abhissng/relay/serializer"
	"github.com/abhissng/relay/transport"
	"github.com/abhissng/relay/transport/memory"
	"github.com/abhissng/relay/utils/circuitBreaker"
	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/types"
)

type ping struct {
	N int `json:"n"`
}

func (ping) MessageType() string { return "test.ping" }

func newSerializer(t *testing.T) *serializer.Serializer {
	t.Helper()
	r := serializer.NewRegistry()
	require.NoError(t, serializer.Register[ping](r))
	return serializer.New(r)
}

type outcomes struct {
	acked, requeued, rejected atomic.Int32
}

func (o *outcomes) ObserveDelivery(_ string, outcome types.Outcome, _ time.Duration) {
	switch outcome {
	case constant.Acked:
		o.acked.Add(1)
	case constant.Requeued:
		o.requeued.Add(1)
	case constant.Rejected:
		o.rejected.Add(1)
	}
}

func runConsumer(t *testing.T, b *memory.Broker, h handler.Handler[transport.Message], m engine.Metrics, opts ...engine.ConsumerOption) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c := engine.NewConsumer(b, "q", h, append([]engine.ConsumerOption{engine.WithConsumerMetrics(m)}, opts...)...)
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, c.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func publish(t *testing.T, b *memory.Broker, s *serializer.Serializer, n int) {
	t.Helper()
	msg, err := s.Marshal(envelope.New(ping{N: n}, ""))
	require.NoError(t, err)
	require.NoError(t, b.Publish(context.Background(), "q", msg))
}

func TestConsumerAcksSuccess(t *testing.T) {
	b := memory.NewBroker()
	s := newSerializer(t)
	m := &outcomes{}
	var got atomic.Int32

	d := handler.NewDispatcher()
	require.NoError(t, handler.On(d, handler.HandlerFunc[ping](func(_ context.Context, p ping) error {
		got.Store(int32(p.N))
		return nil
	})))
	runConsumer(t, b, handler.NewPipeline(s, d), m)
	publish(t, b, s, 42)

	assert.Eventually(t, func() bool { return m.acked.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(42), got.Load())
	assert.Empty(t, b.DeadLetters("q"))
}

func TestConsumerRequeuesThenRejects(t *testing.T) {
	b := memory.NewBroker()
	s := newSerializer(t)
	m := &outcomes{}
	var calls atomic.Int32

	h := handler.HandlerFunc[transport.Message](func(context.Context, transport.Message) error {
		calls.Add(1)
		return errors.New("database unavailable")
	})
	runConsumer(t, b, h, m)
	publish(t, b, s, 1)

	assert.Eventually(t, func() bool { return m.rejected.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), m.requeued.Load())
	assert.Equal(t, int32(2), calls.Load())
	assert.Len(t, b.DeadLetters("q"), 1)
}

func TestConsumerRequeuesPoisonOnceByDefault(t *testing.T) {
	b := memory.NewBroker()
	s := newSerializer(t)
	m := &outcomes{}

	runConsumer(t, b, handler.NewPipeline(s, handler.NewDispatcher()), m)
	require.NoError(t, b.Publish(context.Background(), "q", transport.Message{Type: "test.unknown", Body: []byte("{}")}))

	assert.Eventually(t, func() bool { return m.rejected.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), m.requeued.Load())
	assert.Len(t, b.DeadLetters("q"), 1)
}

func TestConsumerRejectsPoisonAtOnceWhenEnabled(t *testing.T) {
	b := memory.NewBroker()
	s := newSerializer(t)
	m := &outcomes{}

	runConsumer(t, b, handler.NewPipeline(s, handler.NewDispatcher()), m, engine.WithRejectPoison())
	require.NoError(t, b.Publish(context.Background(), "q", transport.Message{Type: "test.unknown", Body: []byte("{}")}))

	assert.Eventually(t, func() bool { return m.rejected.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, m.requeued.Load())
	assert.Len(t, b.DeadLetters("q"), 1)
}

func TestConsumerRecoversPanic(t *testing.T) {
	b := memory.NewBroker()
	s := newSerializer(t)
	m := &outcomes{}

	h := handler.HandlerFunc[transport.Message](func(context.Context, transport.Message) error {
		panic("kaboom")
	})
	runConsumer(t, b, h, m)
	publish(t, b, s, 1)

	assert.Eventually(t, func() bool { return m.rejected.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), m.requeued.Load())
}

func TestHostRejectsSecondConsumerOnQueue(t *testing.T) {
	h := engine.NewHost(memory.NewBroker())
	noop := handler.HandlerFunc[transport.Message](func(context.Context, transport.Message) error { return nil })

	subs := engine.NewSubscriptions(engine.WithQueuePrefix("dev.")).
		AddSubscriber("a", noop).
		AddSubscriber("b", noop)
	require.NoError(t, h.Subscribe(subs))
	assert.Equal(t, []string{"dev.a", "dev.b"}, h.Queues())

	err := h.Add("dev.a", noop)
	assert.True(t, blame.IsCode(err, blame.ErrorAlreadySubscribedToQueue))
}

func TestHostRunAndShutdown(t *testing.T) {
	b := memory.NewBroker()
	s := newSerializer(t)
	m := &outcomes{}
	h := engine.NewHost(b, engine.WithHostMetrics(m))
	noop := handler.HandlerFunc[transport.Message](func(context.Context, transport.Message) error { return nil })
	require.NoError(t, h.Add("q", noop))
	require.NoError(t, h.Add("other", noop))

	errc := make(chan error, 1)
	go func() { errc <- h.Run(context.Background()) }()
	publish(t, b, s, 1)
	assert.Eventually(t, func() bool { return m.acked.Load() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.Shutdown(ctx))
	assert.NoError(t, <-errc)
}

func TestProducerRoutesAndDelays(t *testing.T) {
	b := memory.NewBroker()
	s := newSerializer(t)
	p := engine.NewProducer(s, b, engine.WithRouter(engine.Routes(map[string]string{"test.ping": "pings"})))

	env, err := p.Start(context.Background(), ping{N: 1}, "corr")
	require.NoError(t, err)
	assert.Equal(t, "corr", env.CorrelationID())
	assert.Equal(t, 1, b.Len("pings"))

	assert.True(t, p.CanDelay())
	require.NoError(t, p.SendDelayed(context.Background(), envelope.New(ping{}, ""), time.Hour))
	assert.Equal(t, 1, b.PendingDelayed())
	require.NoError(t, b.Close())
}

type plainPublisher struct {
	err   error
	calls atomic.Int32
}

func (p *plainPublisher) Publish(context.Context, string, transport.Message) error {
	p.calls.Add(1)
	return p.err
}

func (p *plainPublisher) PublishBatch(context.Context, string, []transport.Message) error {
	return p.err
}

func TestProducerWithoutDelaySupport(t *testing.T) {
	p := engine.NewProducer(newSerializer(t), &plainPublisher{})
	assert.False(t, p.CanDelay())
	err := p.SendDelayed(context.Background(), envelope.New(ping{}, ""), time.Second)
	assert.True(t, blame.IsCode(err, blame.ErrorDelayedPublishUnsupported))
	assert.False(t, blame.IsRetryable(err))
}

func TestProducerBreakerOpens(t *testing.T) {
	pub := &plainPublisher{err: errors.New("connection refused")}
	cb := circuitBreaker.NewCircuitBreaker(circuitBreaker.WithReadyToTrip(func(c gobreaker.Counts) bool {
		return c.ConsecutiveFailures >= 2
	}))
	p := engine.NewProducer(newSerializer(t), pub, engine.WithBreaker(cb))

	for range 4 {
		err := p.Send(context.Background(), envelope.New(ping{}, ""))
		assert.True(t, blame.IsCode(err, blame.ErrorPublishMessageFailed))
		assert.True(t, blame.IsRetryable(err))
	}
	assert.Equal(t, int32(2), pub.calls.Load())
}
