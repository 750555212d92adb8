package handler_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/handler"
	"github.com/abhissng/relay/serializer"
	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/idempotency"
)

type orderPlaced struct {
	Order int   `json:"order"`
	Food  []int `json:"food"`
}

func (orderPlaced) MessageType() string { return "test.order-placed" }

type foodCooked struct {
	Order int `json:"order"`
	Food  int `json:"food"`
}

func (foodCooked) MessageType() string { return "test.food-cooked" }

func observed(level zapcore.Level) (*log.Log, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return log.FromZap(zap.New(core)), logs
}

func counting(calls *atomic.Int32, failures int32, err error) handler.Handler[envelope.Envelope] {
	return handler.HandlerFunc[envelope.Envelope](func(context.Context, envelope.Envelope) error {
		if calls.Add(1) <= failures {
			return err
		}
		return nil
	})
}

func TestChainOrder(t *testing.T) {
	var trace []string
	mark := func(name string) handler.Middleware[int] {
		return func(next handler.Handler[int]) handler.Handler[int] {
			return handler.HandlerFunc[int](func(ctx context.Context, v int) error {
				trace = append(trace, name)
				return next.Handle(ctx, v)
			})
		}
	}
	h := handler.Chain[int](handler.HandlerFunc[int](func(context.Context, int) error {
		trace = append(trace, "handler")
		return nil
	}), mark("outer"), nil, mark("inner"))

	require.NoError(t, h.Handle(context.Background(), 1))
	assert.Equal(t, []string{"outer", "inner", "handler"}, trace)
}

func TestRetryInvokesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	h := handler.Chain(counting(&calls, 2, errors.New("flaky")),
		handler.Retry(handler.RetryConfig{MaxRetries: 3}))

	require.NoError(t, h.Handle(context.Background(), envelope.New(foodCooked{}, "")))
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryExhaustsBudget(t *testing.T) {
	var calls atomic.Int32
	flaky := errors.New("flaky")
	h := handler.Chain(counting(&calls, 100, flaky),
		handler.Retry(handler.RetryConfig{MaxRetries: 2, Wait: time.Millisecond}))

	err := h.Handle(context.Background(), envelope.New(foodCooked{}, ""))
	assert.ErrorIs(t, err, flaky)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetryZeroRunsOnce(t *testing.T) {
	var calls atomic.Int32
	h := handler.Chain(counting(&calls, 100, errors.New("flaky")),
		handler.Retry(handler.RetryConfig{}))

	assert.Error(t, h.Handle(context.Background(), envelope.New(foodCooked{}, "")))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetrySkipsNonRetryable(t *testing.T) {
	var calls atomic.Int32
	h := handler.Chain(counting(&calls, 100, blame.UnknownTypeError("x")),
		handler.Retry(handler.RetryConfig{MaxRetries: 5}))

	err := h.Handle(context.Background(), envelope.New(foodCooked{}, ""))
	assert.True(t, blame.IsCode(err, blame.ErrorUnknownMessageType))
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryStopsOnCancel(t *testing.T) {
	var calls atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	h := handler.Chain(handler.HandlerFunc[envelope.Envelope](func(context.Context, envelope.Envelope) error {
		calls.Add(1)
		cancel()
		return errors.New("flaky")
	}), handler.Retry(handler.RetryConfig{MaxRetries: 5, Wait: time.Hour}))

	assert.Error(t, h.Handle(ctx, envelope.New(foodCooked{}, "")))
	assert.Equal(t, int32(1), calls.Load())
}

func TestIdempotencyPassesDuplicateThrough(t *testing.T) {
	logger, logs := observed(zapcore.WarnLevel)
	var calls atomic.Int32
	store := idempotency.NewLRUStore(16, time.Hour)
	h := handler.Chain(counting(&calls, 0, nil),
		handler.Idempotency(store, handler.WithIdempotencyLogger(logger)))

	env := envelope.New(foodCooked{Order: 1, Food: 2}, "")
	require.NoError(t, h.Handle(context.Background(), env))
	require.NoError(t, h.Handle(context.Background(), env))

	assert.Equal(t, int32(2), calls.Load())
	dups := logs.FilterMessage(constant.DuplicateMessage).All()
	require.Len(t, dups, 1)
	assert.Equal(t, env.MessageID(), dups[0].ContextMap()[constant.MessageID])
}

func TestIdempotencySkipDuplicates(t *testing.T) {
	var calls atomic.Int32
	store := idempotency.NewLRUStore(16, time.Hour)
	h := handler.Chain(counting(&calls, 0, nil),
		handler.Idempotency(store, handler.WithSkipDuplicates()))

	env := envelope.New(foodCooked{Order: 1, Food: 2}, "")
	require.NoError(t, h.Handle(context.Background(), env))
	require.NoError(t, h.Handle(context.Background(), env))
	assert.Equal(t, int32(1), calls.Load())

	// a re-issued command carries a new message id
	require.NoError(t, h.Handle(context.Background(), envelope.New(foodCooked{Order: 1, Food: 2}, "")))
	assert.Equal(t, int32(2), calls.Load())
}

func TestIdempotencyMarksOnlyAfterSuccess(t *testing.T) {
	var calls atomic.Int32
	store := idempotency.NewLRUStore(16, time.Hour)
	h := handler.Chain(counting(&calls, 1, errors.New("boom")),
		handler.Idempotency(store, handler.WithSkipDuplicates()))

	env := envelope.New(foodCooked{Order: 1, Food: 2}, "")
	assert.Error(t, h.Handle(context.Background(), env))
	require.NoError(t, h.Handle(context.Background(), env))
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 1, store.Len())
}

func TestContentFingerprintIgnoresMessageID(t *testing.T) {
	a, err := handler.ContentFingerprint(envelope.New(foodCooked{Order: 1, Food: 2}, ""))
	require.NoError(t, err)
	b, err := handler.ContentFingerprint(envelope.New(foodCooked{Order: 1, Food: 2}, ""))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := handler.MessageFingerprint(envelope.New(foodCooked{Order: 1, Food: 2}, ""))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestIdempotencyContentFingerprintFlagsEqualPayloads(t *testing.T) {
	var calls atomic.Int32
	store := idempotency.NewLRUStore(16, time.Hour)
	h := handler.Chain(counting(&calls, 0, nil),
		handler.Idempotency(store, handler.WithSkipDuplicates(), handler.WithFingerprint(handler.ContentFingerprint)))

	require.NoError(t, h.Handle(context.Background(), envelope.New(foodCooked{Order: 1, Food: 2}, "")))
	require.NoError(t, h.Handle(context.Background(), envelope.New(foodCooked{Order: 1, Food: 2}, "")))
	assert.Equal(t, int32(1), calls.Load())

	require.NoError(t, h.Handle(context.Background(), envelope.New(foodCooked{Order: 1, Food: 3}, "")))
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoggingReportsOutcome(t *testing.T) {
	logger, logs := observed(zapcore.DebugLevel)
	boom := errors.New("boom")
	h := handler.Chain(handler.HandlerFunc[envelope.Envelope](func(context.Context, envelope.Envelope) error {
		return boom
	}), handler.Logging(logger))

	env := envelope.New(foodCooked{}, "corr-1")
	assert.ErrorIs(t, h.Handle(context.Background(), env), boom)
	assert.Equal(t, 1, logs.FilterMessage(constant.HandlerStarted).Len())
	failed := logs.FilterMessage(constant.HandlerFailed).All()
	require.Len(t, failed, 1)
	assert.Equal(t, "corr-1", failed[0].ContextMap()[constant.CorrelationID])
}

func TestDispatcherFanOut(t *testing.T) {
	d := handler.NewDispatcher()
	var order []string
	require.NoError(t, handler.On(d, handler.HandlerFunc[foodCooked](func(_ context.Context, m foodCooked) error {
		order = append(order, "first")
		assert.Equal(t, 7, m.Food)
		return nil
	})))
	require.NoError(t, handler.OnEnvelope(d, func(_ context.Context, env envelope.Envelope, _ foodCooked) error {
		order = append(order, "second")
		assert.Equal(t, "corr", env.CorrelationID())
		return nil
	}))

	require.NoError(t, d.Handle(context.Background(), envelope.New(foodCooked{Food: 7}, "corr")))
	assert.Equal(t, []string{"first", "second"}, order)
	assert.Equal(t, []string{"test.food-cooked"}, d.Types())
}

func TestDispatcherNoHandler(t *testing.T) {
	d := handler.NewDispatcher()
	err := d.Handle(context.Background(), envelope.New(orderPlaced{}, ""))
	assert.True(t, blame.IsCode(err, blame.ErrorNoHandlerRegistered))
	assert.False(t, blame.IsRetryable(err))
	assert.Error(t, d.Register("test.empty"))
}

func TestUnwrapTypeMismatch(t *testing.T) {
	h := handler.Unwrap[orderPlaced](handler.HandlerFunc[orderPlaced](func(context.Context, orderPlaced) error {
		return nil
	}))
	err := h.Handle(context.Background(), envelope.New(foodCooked{}, ""))
	assert.True(t, blame.IsCode(err, blame.ErrorMessageTypeMismatch))
}

func TestPipelineEndToEnd(t *testing.T) {
	r := serializer.NewRegistry()
	require.NoError(t, serializer.Register[orderPlaced](r))
	s := serializer.New(r)

	d := handler.NewDispatcher()
	var got orderPlaced
	var calls atomic.Int32
	require.NoError(t, handler.On(d, handler.HandlerFunc[orderPlaced](func(_ context.Context, m orderPlaced) error {
		if calls.Add(1) == 1 {
			return errors.New("transient")
		}
		got = m
		return nil
	})))

	p := handler.NewPipeline(s, d, handler.WithRetry(1, 0))
	msg, err := s.Marshal(envelope.New(orderPlaced{Order: 3, Food: []int{1, 2}}, ""))
	require.NoError(t, err)

	require.NoError(t, p.Handle(context.Background(), msg))
	assert.Equal(t, orderPlaced{Order: 3, Food: []int{1, 2}}, got)
	assert.Equal(t, int32(2), calls.Load())

	msg.Type = "test.nobody-knows"
	err = p.Handle(context.Background(), msg)
	assert.True(t, blame.IsCode(err, blame.ErrorUnknownMessageType))
	assert.Equal(t, int32(2), calls.Load())
}
