package restaurant

import (
	"context"
	"time"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/saga"
	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/random"
)

// SagaName names the order-fulfillment saga.
const SagaName = "order-fulfillment"

// Defaults of FulfillmentConfig.
const (
	DefaultFoodTimeout         = 10 * time.Second
	DefaultDeliveryTimeout     = 10 * time.Second
	DefaultMaxFoodReissues     = 3
	DefaultMaxDeliveryReissues = 3
)

// DeliveryRequest tracks one request sent to the delivery desk.
type DeliveryRequest struct {
	RequestID string `json:"requestId"`
	Delivered bool   `json:"delivered"`
}

// FoodPrep tracks one dish. Delivery is nil until the dish is cooked.
type FoodPrep struct {
	Food     int              `json:"food"`
	Delivery *DeliveryRequest `json:"delivery,omitempty"`
}

// Prepared reports whether the dish left the kitchen.
func (f FoodPrep) Prepared() bool { return f.Delivery != nil }

// Delivered reports whether the dish reached the guest.
func (f FoodPrep) Delivered() bool { return f.Delivery != nil && f.Delivery.Delivered }

// OrderFulfillmentState is the state of one order.
type OrderFulfillmentState struct {
	Guest            int              `json:"guest"`
	Order            int              `json:"order"`
	Drinks           []int            `json:"drinks"`
	DrinkDelivery    *DeliveryRequest `json:"drinkDelivery,omitempty"`
	FoodPreps        []FoodPrep       `json:"foodPreps"`
	FoodReissues     int              `json:"foodReissues"`
	DeliveryReissues int              `json:"deliveryReissues"`
}

// Clone implements saga.State.
func (s *OrderFulfillmentState) Clone() *OrderFulfillmentState {
	c := *s
	c.Drinks = append([]int(nil), s.Drinks...)
	if s.DrinkDelivery != nil {
		d := *s.DrinkDelivery
		c.DrinkDelivery = &d
	}
	c.FoodPreps = make([]FoodPrep, len(s.FoodPreps))
	for i, prep := range s.FoodPreps {
		c.FoodPreps[i] = prep
		if prep.Delivery != nil {
			d := *prep.Delivery
			c.FoodPreps[i].Delivery = &d
		}
	}
	return &c
}

// Unprepared returns the dishes the kitchen has not reported yet.
func (s *OrderFulfillmentState) Unprepared() []FoodPrep {
	var out []FoodPrep
	for _, prep := range s.FoodPreps {
		if !prep.Prepared() {
			out = append(out, prep)
		}
	}
	return out
}

// Complete reports whether every dish and the drinks were delivered.
func (s *OrderFulfillmentState) Complete() bool {
	if s.DrinkDelivery != nil && !s.DrinkDelivery.Delivered {
		return false
	}
	for _, prep := range s.FoodPreps {
		if !prep.Delivered() {
			return false
		}
	}
	return true
}

// FulfillmentConfig tunes the saga.
type FulfillmentConfig struct {
	FoodTimeout         time.Duration
	DeliveryTimeout     time.Duration
	MaxFoodReissues     int
	MaxDeliveryReissues int
	NewRequestID        func() string
	Logger              *log.Log
}

func (c *FulfillmentConfig) defaults() {
	if c.FoodTimeout <= 0 {
		c.FoodTimeout = DefaultFoodTimeout
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = DefaultDeliveryTimeout
	}
	// zero takes the default budget, a negative budget disables re-issues
	switch {
	case c.MaxFoodReissues == 0:
		c.MaxFoodReissues = DefaultMaxFoodReissues
	case c.MaxFoodReissues < 0:
		c.MaxFoodReissues = 0
	}
	switch {
	case c.MaxDeliveryReissues == 0:
		c.MaxDeliveryReissues = DefaultMaxDeliveryReissues
	case c.MaxDeliveryReissues < 0:
		c.MaxDeliveryReissues = 0
	}
	if c.NewRequestID == nil {
		c.NewRequestID = random.GenerateUUIDString
	}
	if c.Logger == nil {
		c.Logger = log.NewNopLogger()
	}
}

type fulfillment struct {
	cfg FulfillmentConfig
}

// Context is the saga context of the order-fulfillment saga.
type Context = saga.Context[*OrderFulfillmentState]

// NewOrderFulfillment defines the order-fulfillment saga.
func NewOrderFulfillment(cfg FulfillmentConfig) (*saga.Saga[*OrderFulfillmentState], error) {
	cfg.defaults()
	f := &fulfillment{cfg: cfg}
	s := saga.New(SagaName, func() *OrderFulfillmentState { return &OrderFulfillmentState{} }).
		CompleteWhen((*OrderFulfillmentState).Complete)

	for _, register := range []func() error{
		func() error { return saga.On(s, f.orderPlaced) },
		func() error { return saga.On(s, f.foodCooked) },
		func() error { return saga.On(s, f.itemsDelivered) },
		func() error { return saga.OnTimeout(s, f.didFoodPreparationFinish) },
		func() error { return saga.OnTimeout(s, f.didItemDeliverySucceed) },
	} {
		if err := register(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (f *fulfillment) ignore(sc *Context, reason string) {
	f.cfg.Logger.Debug(constant.SagaIgnored,
		log.String(constant.CorrelationID, sc.CorrelationID()),
		log.String("type", sc.Message().Type()),
		log.String("reason", reason))
	sc.Ignore()
}

func (f *fulfillment) orderPlaced(_ context.Context, sc *Context, msg OrderPlaced) error {
	if !sc.Created() {
		f.ignore(sc, "order already placed")
		return nil
	}
	st := sc.State()
	st.Guest = msg.Guest
	st.Order = msg.Order
	st.Drinks = append([]int(nil), msg.Drinks...)
	st.FoodPreps = make([]FoodPrep, 0, len(msg.Food))
	for _, food := range msg.Food {
		st.FoodPreps = append(st.FoodPreps, FoodPrep{Food: food})
		sc.Send(CookFood{Order: msg.Order, Food: food})
	}
	if len(msg.Food) > 0 {
		sc.RequestTimeout(DidFoodPreparationFinish{Order: msg.Order}, f.cfg.FoodTimeout)
	}

	if len(msg.Drinks) > 0 {
		st.DrinkDelivery = &DeliveryRequest{RequestID: f.cfg.NewRequestID()}
		sc.Send(f.deliverDrinks(st))
		sc.RequestTimeout(DidItemDeliverySucceed{DeliveryRequest: st.DrinkDelivery.RequestID}, f.cfg.DeliveryTimeout)
	}
	return nil
}

func (f *fulfillment) deliverDrinks(st *OrderFulfillmentState) DeliverDrinks {
	return DeliverDrinks{
		DeliveryRequest: st.DrinkDelivery.RequestID,
		Order:           st.Order,
		Drinks:          append([]int(nil), st.Drinks...),
		Guest:           st.Guest,
	}
}

// foodCooked fills the first unprepared marker of the dish. A dish cooked
// twice after a re-issue finds no marker left and is dropped.
func (f *fulfillment) foodCooked(_ context.Context, sc *Context, msg FoodCooked) error {
	if sc.Created() {
		f.ignore(sc, "unknown order")
		return nil
	}
	st := sc.State()
	for i := range st.FoodPreps {
		prep := &st.FoodPreps[i]
		if prep.Food != msg.Food || prep.Prepared() {
			continue
		}
		prep.Delivery = &DeliveryRequest{RequestID: f.cfg.NewRequestID()}
		sc.Send(DeliverCookedFood{
			DeliveryRequest: prep.Delivery.RequestID,
			Guest:           st.Guest,
			Order:           st.Order,
			Food:            msg.Food,
		})
		sc.RequestTimeout(DidItemDeliverySucceed{DeliveryRequest: prep.Delivery.RequestID}, f.cfg.DeliveryTimeout)
		return nil
	}
	f.ignore(sc, "dish already prepared")
	return nil
}

func (f *fulfillment) itemsDelivered(_ context.Context, sc *Context, msg ItemsDelivered) error {
	if sc.Created() {
		f.ignore(sc, "unknown order")
		return nil
	}
	req := sc.State().request(msg.DeliveryRequest)
	if req == nil || req.Delivered {
		f.ignore(sc, "unknown or settled delivery request")
		return nil
	}
	req.Delivered = true
	return nil
}

func (s *OrderFulfillmentState) request(id string) *DeliveryRequest {
	if s.DrinkDelivery != nil && s.DrinkDelivery.RequestID == id {
		return s.DrinkDelivery
	}
	for i := range s.FoodPreps {
		if d := s.FoodPreps[i].Delivery; d != nil && d.RequestID == id {
			return d
		}
	}
	return nil
}

// didFoodPreparationFinish asks the kitchen again for every dish still
// missing and re-arms itself while the re-issue budget lasts.
func (f *fulfillment) didFoodPreparationFinish(_ context.Context, sc *Context, msg DidFoodPreparationFinish) error {
	if sc.Created() {
		f.ignore(sc, "unknown order")
		return nil
	}
	st := sc.State()
	unprepared := st.Unprepared()
	if len(unprepared) == 0 {
		f.ignore(sc, "all dishes prepared")
		return nil
	}
	if st.FoodReissues >= f.cfg.MaxFoodReissues {
		f.cfg.Logger.Warn(constant.HandlerExhausted,
			log.String(constant.CorrelationID, sc.CorrelationID()),
			log.Int("order", st.Order),
			log.Int("unprepared", len(unprepared)))
		sc.Ignore()
		return nil
	}
	st.FoodReissues++
	for _, prep := range unprepared {
		sc.Send(CookFood{Order: msg.Order, Food: prep.Food})
	}
	sc.RequestTimeout(DidFoodPreparationFinish{Order: msg.Order}, f.cfg.FoodTimeout)
	return nil
}

// didItemDeliverySucceed sends an unconfirmed delivery again under the same
// request id.
func (f *fulfillment) didItemDeliverySucceed(_ context.Context, sc *Context, msg DidItemDeliverySucceed) error {
	if sc.Created() {
		f.ignore(sc, "unknown order")
		return nil
	}
	st := sc.State()
	req := st.request(msg.DeliveryRequest)
	if req == nil || req.Delivered {
		f.ignore(sc, "delivery confirmed")
		return nil
	}
	if st.DeliveryReissues >= f.cfg.MaxDeliveryReissues {
		f.cfg.Logger.Warn(constant.HandlerExhausted,
			log.String(constant.CorrelationID, sc.CorrelationID()),
			log.String("deliveryRequest", msg.DeliveryRequest))
		sc.Ignore()
		return nil
	}
	st.DeliveryReissues++

	if req == st.DrinkDelivery {
		sc.Send(f.deliverDrinks(st))
	} else {
		for _, prep := range st.FoodPreps {
			if prep.Delivery == req {
				sc.Send(DeliverCookedFood{
					DeliveryRequest: req.RequestID,
					Guest:           st.Guest,
					Order:           st.Order,
					Food:            prep.Food,
				})
				break
			}
		}
	}
	sc.RequestTimeout(DidItemDeliverySucceed{DeliveryRequest: req.RequestID}, f.cfg.DeliveryTimeout)
	return nil
}
