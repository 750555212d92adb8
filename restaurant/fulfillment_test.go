package restaurant_test

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/restaurant"
	"github.com/abhissng/relay/saga"
)

type outbox struct {
	mu        sync.Mutex
	sent      []envelope.Envelope
	scheduled []envelope.Envelope
	delays    []time.Duration
}

func (o *outbox) SendAll(_ context.Context, envs ...envelope.Envelope) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent = append(o.sent, envs...)
	return nil
}

func (o *outbox) Schedule(_ context.Context, env envelope.Envelope, after time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scheduled = append(o.scheduled, env)
	o.delays = append(o.delays, after)
	return nil
}

func (o *outbox) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sent, o.scheduled, o.delays = nil, nil, nil
}

func bodies[T envelope.Message](envs []envelope.Envelope) []T {
	var out []T
	for _, env := range envs {
		if v, err := envelope.BodyAs[T](env); err == nil {
			out = append(out, v)
		}
	}
	return out
}

type fixture struct {
	o      *saga.Orchestrator[*restaurant.OrderFulfillmentState]
	box    *outbox
	origin envelope.Envelope
}

func newFixture(t *testing.T, cfg restaurant.FulfillmentConfig) *fixture {
	t.Helper()
	var n int
	cfg.NewRequestID = func() string {
		n++
		return "req-" + strconv.Itoa(n)
	}
	definition, err := restaurant.NewOrderFulfillment(cfg)
	require.NoError(t, err)
	box := &outbox{}
	store := saga.NewMemoryStore[*restaurant.OrderFulfillmentState](saga.WithRetention(0))
	return &fixture{o: saga.NewOrchestrator(definition, store, box, box), box: box}
}

func (f *fixture) place(t *testing.T, food, drinks []int) {
	t.Helper()
	f.origin = envelope.New(restaurant.OrderPlaced{Guest: 7, Order: 1, Food: food, Drinks: drinks},
		restaurant.OrderCorrelationID(1))
	require.NoError(t, f.o.Handle(context.Background(), f.origin))
}

func (f *fixture) deliver(t *testing.T, body envelope.Message) {
	t.Helper()
	require.NoError(t, f.o.Handle(context.Background(), envelope.CorrelateWith(f.origin, body)))
}

func (f *fixture) state(t *testing.T) *restaurant.OrderFulfillmentState {
	t.Helper()
	st, ok, err := f.o.State(context.Background(), restaurant.OrderCorrelationID(1))
	require.NoError(t, err)
	require.True(t, ok)
	return st
}

func TestOrderPlacedFansOut(t *testing.T) {
	f := newFixture(t, restaurant.FulfillmentConfig{FoodTimeout: 3 * time.Second, DeliveryTimeout: 5 * time.Second})
	f.place(t, []int{1, 2}, []int{3})

	assert.Equal(t, []restaurant.CookFood{{Order: 1, Food: 1}, {Order: 1, Food: 2}}, bodies[restaurant.CookFood](f.box.sent))
	assert.Equal(t, []restaurant.DeliverDrinks{{DeliveryRequest: "req-1", Order: 1, Drinks: []int{3}, Guest: 7}},
		bodies[restaurant.DeliverDrinks](f.box.sent))
	require.Len(t, f.box.sent, 3)
	for _, env := range append(f.box.sent, f.box.scheduled...) {
		assert.Equal(t, "order-request-1", env.CorrelationID())
		assert.Equal(t, f.origin.MessageID(), env.CausationID())
	}

	require.Len(t, f.box.scheduled, 2)
	assert.Len(t, bodies[restaurant.DidFoodPreparationFinish](f.box.scheduled), 1)
	assert.Equal(t, []restaurant.DidItemDeliverySucceed{{DeliveryRequest: "req-1"}},
		bodies[restaurant.DidItemDeliverySucceed](f.box.scheduled))
	assert.Equal(t, []time.Duration{3 * time.Second, 5 * time.Second}, f.box.delays)

	st := f.state(t)
	assert.Equal(t, 7, st.Guest)
	assert.Len(t, st.Unprepared(), 2)
	assert.False(t, st.Complete())
}

func TestDuplicateOrderPlacedIsIgnored(t *testing.T) {
	f := newFixture(t, restaurant.FulfillmentConfig{})
	f.place(t, []int{1}, nil)
	f.box.reset()

	require.NoError(t, f.o.Handle(context.Background(), f.origin))
	assert.Empty(t, f.box.sent)
	assert.Empty(t, f.box.scheduled)
}

func TestFoodMarkersAdvance(t *testing.T) {
	f := newFixture(t, restaurant.FulfillmentConfig{})
	f.place(t, []int{1, 2}, []int{3})
	f.box.reset()

	f.deliver(t, restaurant.FoodCooked{Order: 1, Food: 1})
	st := f.state(t)
	require.NotNil(t, st.FoodPreps[0].Delivery)
	assert.Equal(t, "req-2", st.FoodPreps[0].Delivery.RequestID)
	assert.False(t, st.FoodPreps[0].Delivered())
	assert.Nil(t, st.FoodPreps[1].Delivery)
	assert.Equal(t, []restaurant.DeliverCookedFood{{DeliveryRequest: "req-2", Guest: 7, Order: 1, Food: 1}},
		bodies[restaurant.DeliverCookedFood](f.box.sent))

	f.deliver(t, restaurant.ItemsDelivered{DeliveryRequest: "req-2"})
	assert.True(t, f.state(t).FoodPreps[0].Delivered())

	// a second FoodCooked for the same dish has no marker left
	f.box.reset()
	f.deliver(t, restaurant.FoodCooked{Order: 1, Food: 1})
	assert.Empty(t, f.box.sent)
}

func TestFoodTimeoutReissuesOnlyUnprepared(t *testing.T) {
	f := newFixture(t, restaurant.FulfillmentConfig{MaxFoodReissues: 1})
	f.place(t, []int{1, 2}, nil)
	f.deliver(t, restaurant.FoodCooked{Order: 1, Food: 1})
	f.box.reset()

	f.deliver(t, restaurant.DidFoodPreparationFinish{Order: 1})
	assert.Equal(t, []restaurant.CookFood{{Order: 1, Food: 2}}, bodies[restaurant.CookFood](f.box.sent))
	for _, env := range f.box.sent {
		assert.Equal(t, "order-request-1", env.CorrelationID())
	}
	assert.Len(t, bodies[restaurant.DidFoodPreparationFinish](f.box.scheduled), 1)
	assert.Equal(t, 1, f.state(t).FoodReissues)

	// the budget is spent
	f.box.reset()
	f.deliver(t, restaurant.DidFoodPreparationFinish{Order: 1})
	assert.Empty(t, f.box.sent)
	assert.Empty(t, f.box.scheduled)
}

func TestZeroConfigUsesDefaultReissueBudget(t *testing.T) {
	f := newFixture(t, restaurant.FulfillmentConfig{})
	f.place(t, []int{1}, nil)
	f.box.reset()

	for i := 1; i <= restaurant.DefaultMaxFoodReissues; i++ {
		f.deliver(t, restaurant.DidFoodPreparationFinish{Order: 1})
		assert.Equal(t, i, f.state(t).FoodReissues)
	}
	assert.Len(t, bodies[restaurant.CookFood](f.box.sent), restaurant.DefaultMaxFoodReissues)

	f.box.reset()
	f.deliver(t, restaurant.DidFoodPreparationFinish{Order: 1})
	assert.Empty(t, f.box.sent)
}

func TestNegativeBudgetDisablesReissue(t *testing.T) {
	f := newFixture(t, restaurant.FulfillmentConfig{MaxFoodReissues: -1, MaxDeliveryReissues: -1})
	f.place(t, []int{1}, []int{2})
	f.box.reset()

	f.deliver(t, restaurant.DidFoodPreparationFinish{Order: 1})
	f.deliver(t, restaurant.DidItemDeliverySucceed{DeliveryRequest: "req-1"})
	assert.Empty(t, f.box.sent)
	assert.Empty(t, f.box.scheduled)
}

func TestFoodTimeoutAfterEverythingCooked(t *testing.T) {
	f := newFixture(t, restaurant.FulfillmentConfig{})
	f.place(t, []int{1}, nil)
	f.deliver(t, restaurant.FoodCooked{Order: 1, Food: 1})
	f.box.reset()

	f.deliver(t, restaurant.DidFoodPreparationFinish{Order: 1})
	assert.Empty(t, f.box.sent)
	assert.Empty(t, f.box.scheduled)
}

func TestDeliveryTimeoutReissuesSameRequest(t *testing.T) {
	f := newFixture(t, restaurant.FulfillmentConfig{})
	f.place(t, nil, []int{3, 4})
	f.box.reset()

	f.deliver(t, restaurant.DidItemDeliverySucceed{DeliveryRequest: "req-1"})
	assert.Equal(t, []restaurant.DeliverDrinks{{DeliveryRequest: "req-1", Order: 1, Drinks: []int{3, 4}, Guest: 7}},
		bodies[restaurant.DeliverDrinks](f.box.sent))

	f.deliver(t, restaurant.ItemsDelivered{DeliveryRequest: "req-1"})
	assert.True(t, f.state(t).Complete())

	f.box.reset()
	f.deliver(t, restaurant.DidItemDeliverySucceed{DeliveryRequest: "req-1"})
	assert.Empty(t, f.box.sent)
}

func TestOrderCompletes(t *testing.T) {
	f := newFixture(t, restaurant.FulfillmentConfig{})
	f.place(t, []int{1}, []int{2})
	f.deliver(t, restaurant.FoodCooked{Order: 1, Food: 1})
	f.deliver(t, restaurant.ItemsDelivered{DeliveryRequest: "req-1"})
	assert.False(t, f.state(t).Complete())
	f.deliver(t, restaurant.ItemsDelivered{DeliveryRequest: "req-2"})
	assert.True(t, f.state(t).Complete())
}

func TestStateCloneIsDeep(t *testing.T) {
	st := &restaurant.OrderFulfillmentState{
		Drinks:        []int{1},
		DrinkDelivery: &restaurant.DeliveryRequest{RequestID: "a"},
		FoodPreps:     []restaurant.FoodPrep{{Food: 1, Delivery: &restaurant.DeliveryRequest{RequestID: "b"}}},
	}
	c := st.Clone()
	c.Drinks[0] = 9
	c.DrinkDelivery.Delivered = true
	c.FoodPreps[0].Delivery.Delivered = true

	assert.Equal(t, 1, st.Drinks[0])
	assert.False(t, st.DrinkDelivery.Delivered)
	assert.False(t, st.FoodPreps[0].Delivered())
}
