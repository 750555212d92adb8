package restaurant_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/restaurant"
)

type sink struct {
	mu   sync.Mutex
	envs []envelope.Envelope
	err  error
}

func (s *sink) Send(_ context.Context, env envelope.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.envs = append(s.envs, env)
	return nil
}

type countingCook struct {
	calls atomic.Int32
	err   error
}

func (c *countingCook) Cook(context.Context, int, int) error {
	c.calls.Add(1)
	return c.err
}

func TestFaultyCookThreshold(t *testing.T) {
	always := restaurant.NewFaultyCook(3, 0, rand.NewPCG(1, 2))
	assert.Equal(t, 1.0, always.Threshold())
	err := always.Cook(context.Background(), 1, 1)
	assert.True(t, blame.IsCode(err, blame.ErrorCookingFailed))
	assert.True(t, blame.IsRetryable(err))

	never := restaurant.NewFaultyCook(-1, 0, rand.NewPCG(1, 2))
	assert.Zero(t, never.Threshold())
	assert.NoError(t, never.Cook(context.Background(), 1, 1))
}

func TestFaultyCookHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := restaurant.NewFaultyCook(0, time.Hour, nil).Cook(ctx, 1, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKitchenCooksOnce(t *testing.T) {
	cook := &countingCook{}
	out := &sink{}
	k := restaurant.NewKitchen(cook, out, 16, time.Hour, nil)

	cmd := envelope.New(restaurant.CookFood{Order: 4, Food: 2}, "order-request-4")
	require.NoError(t, k.Handle(context.Background(), cmd, restaurant.CookFood{Order: 4, Food: 2}))
	require.NoError(t, k.Handle(context.Background(), cmd, restaurant.CookFood{Order: 4, Food: 2}))

	assert.Equal(t, int32(1), cook.calls.Load())
	require.Len(t, out.envs, 2)
	assert.Equal(t, restaurant.FoodCooked{Order: 4, Food: 2}, out.envs[0].Body())
	assert.Equal(t, "order-request-4", out.envs[0].CorrelationID())
	assert.Equal(t, cmd.MessageID(), out.envs[0].CausationID())
}

func TestKitchenFailureDoesNotRemember(t *testing.T) {
	cook := &countingCook{err: errors.New("burnt")}
	out := &sink{}
	k := restaurant.NewKitchen(cook, out, 16, time.Hour, nil)
	cmd := restaurant.CookFood{Order: 1, Food: 1}

	assert.Error(t, k.Handle(context.Background(), envelope.New(cmd, ""), cmd))
	cook.err = nil
	require.NoError(t, k.Handle(context.Background(), envelope.New(cmd, ""), cmd))
	assert.Equal(t, int32(2), cook.calls.Load())
}

func TestDeliveryConfirms(t *testing.T) {
	out := &sink{}
	d := restaurant.NewDelivery(out, nil)
	cmd := restaurant.DeliverDrinks{DeliveryRequest: "r", Order: 1, Drinks: []int{1}}
	require.NoError(t, d.DeliverDrinks(context.Background(), envelope.New(cmd, "c"), cmd))
	food := restaurant.DeliverCookedFood{DeliveryRequest: "f", Order: 1, Food: 2}
	require.NoError(t, d.DeliverCookedFood(context.Background(), envelope.New(food, "c"), food))

	require.Len(t, out.envs, 2)
	assert.Equal(t, restaurant.ItemsDelivered{DeliveryRequest: "r"}, out.envs[0].Body())
	assert.Equal(t, restaurant.ItemsDelivered{DeliveryRequest: "f"}, out.envs[1].Body())
}

func TestPlaceOrder(t *testing.T) {
	out := &sink{}
	ts := restaurant.NewTableService(out, &restaurant.AtomicCounter{}, nil)

	res := ts.PlaceOrder(context.Background(), restaurant.PlaceOrderRequest{Guest: 2, Food: []int{1}, Drinks: []int{5}})
	require.True(t, res.IsSuccess())
	env := res.ToValue()
	assert.Equal(t, "order-request-1", env.CorrelationID())
	assert.Equal(t, restaurant.OrderPlaced{Guest: 2, Order: 1, Food: []int{1}, Drinks: []int{5}}, env.Body())

	res = ts.PlaceOrder(context.Background(), restaurant.PlaceOrderRequest{Guest: 2, Food: []int{2}})
	require.True(t, res.IsSuccess())
	assert.Equal(t, "order-request-2", res.ToValue().CorrelationID())
	assert.Len(t, out.envs, 2)
}

func TestPlaceOrderRejectsInvalid(t *testing.T) {
	out := &sink{}
	ts := restaurant.NewTableService(out, nil, nil)

	for _, req := range []restaurant.PlaceOrderRequest{
		{Guest: -1, Food: []int{1}},
		{Guest: 1, Food: []int{-2}},
		{Guest: 1, Drinks: []int{1, -1}},
		{Guest: 1},
	} {
		res := ts.PlaceOrder(context.Background(), req)
		require.True(t, res.IsError())
		assert.True(t, blame.IsCode(res.Error(), blame.ErrorInvalidOrder))
	}
	assert.Empty(t, out.envs)
}

func TestPlaceOrderPublishFailure(t *testing.T) {
	ts := restaurant.NewTableService(&sink{err: errors.New("down")}, nil, nil)
	res := ts.PlaceOrder(context.Background(), restaurant.PlaceOrderRequest{Food: []int{1}})
	require.True(t, res.IsError())
	assert.True(t, blame.IsCode(res.Error(), blame.ErrorPublishMessageFailed))
}

func TestKitchenCooksEveryCommandForRepeatedDish(t *testing.T) {
	cook := &countingCook{}
	out := &sink{}
	k := restaurant.NewKitchen(cook, out, 16, time.Hour, nil)

	placed := envelope.New(restaurant.OrderPlaced{Order: 9, Food: []int{7, 7}}, "order-request-9")
	first := envelope.CorrelateWith(placed, restaurant.CookFood{Order: 9, Food: 7})
	second := envelope.CorrelateWith(placed, restaurant.CookFood{Order: 9, Food: 7})

	require.NoError(t, k.Handle(context.Background(), first, restaurant.CookFood{Order: 9, Food: 7}))
	require.NoError(t, k.Handle(context.Background(), second, restaurant.CookFood{Order: 9, Food: 7}))

	assert.Equal(t, int32(2), cook.calls.Load())
	assert.Len(t, out.envs, 2)
}
