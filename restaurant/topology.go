package restaurant

import (
	"github.com/abhissng/relay/engine"
	"github.com/abhissng/relay/transport"
)

// Destinations events are published to.
const (
	TableServiceTopic    = "restaurant.tableservice.events"
	FoodPreparationTopic = "restaurant.foodprep.events"
	DeliveryTopic        = "restaurant.delivery.events"
	SagaTimeouts         = "restaurant.timeouts"
)

// Queues consumers read from. Commands are sent straight to their queue.
const (
	FoodPreparationQueue  = "restaurant.foodprep"
	DeliveryQueue         = "restaurant.delivery"
	OrderFulfillmentQueue = "restaurant.orderfulfillment"
)

// Topology returns the queues and bindings of the restaurant. Every event
// topic and the delayed timeout destination feed the saga inbox.
func Topology() transport.Topology {
	return transport.Topology{
		Queues: []string{FoodPreparationQueue, DeliveryQueue, OrderFulfillmentQueue},
		Bindings: []transport.Binding{
			{Destination: TableServiceTopic, Queue: OrderFulfillmentQueue},
			{Destination: FoodPreparationTopic, Queue: OrderFulfillmentQueue},
			{Destination: DeliveryTopic, Queue: OrderFulfillmentQueue},
			{Destination: SagaTimeouts, Queue: OrderFulfillmentQueue},
		},
		Delayed: []string{SagaTimeouts},
	}
}

// Router maps every restaurant message to its destination.
func Router() engine.Router {
	return engine.Routes(map[string]string{
		OrderPlaced{}.MessageType():              TableServiceTopic,
		CookFood{}.MessageType():                 FoodPreparationQueue,
		FoodCooked{}.MessageType():               FoodPreparationTopic,
		DeliverDrinks{}.MessageType():            DeliveryQueue,
		DeliverCookedFood{}.MessageType():        DeliveryQueue,
		ItemsDelivered{}.MessageType():           DeliveryTopic,
		DidFoodPreparationFinish{}.MessageType(): SagaTimeouts,
		DidItemDeliverySucceed{}.MessageType():   SagaTimeouts,
	})
}
