package restaurant

import (
	"context"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/handler"
)

// Delivery serves drinks and cooked dishes and confirms each request.
type Delivery struct {
	sender Sender
	logger *log.Log
}

// NewDelivery creates the delivery desk.
func NewDelivery(sender Sender, logger *log.Log) *Delivery {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Delivery{sender: sender, logger: logger}
}

// DeliverDrinks implements the drinks handler.
func (d *Delivery) DeliverDrinks(ctx context.Context, env envelope.Envelope, cmd DeliverDrinks) error {
	d.logger.Info("Delivering drinks", log.Int("guest", cmd.Guest), log.Int("order", cmd.Order),
		log.Any("drinks", cmd.Drinks), log.String("deliveryRequest", cmd.DeliveryRequest))
	return d.confirm(ctx, env, cmd.DeliveryRequest)
}

// DeliverCookedFood implements the cooked food handler.
func (d *Delivery) DeliverCookedFood(ctx context.Context, env envelope.Envelope, cmd DeliverCookedFood) error {
	d.logger.Info("Delivering cooked food", log.Int("guest", cmd.Guest), log.Int("order", cmd.Order),
		log.Int("food", cmd.Food), log.String("deliveryRequest", cmd.DeliveryRequest))
	return d.confirm(ctx, env, cmd.DeliveryRequest)
}

func (d *Delivery) confirm(ctx context.Context, env envelope.Envelope, request string) error {
	return d.sender.Send(ctx, envelope.CorrelateWith(env, ItemsDelivered{DeliveryRequest: request}))
}

// Register routes both delivery commands to the desk.
func (d *Delivery) Register(dispatcher *handler.Dispatcher) error {
	if err := handler.OnEnvelope(dispatcher, d.DeliverDrinks); err != nil {
		return err
	}
	return handler.OnEnvelope(dispatcher, d.DeliverCookedFood)
}
