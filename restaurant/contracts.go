// Package restaurant is the order-fulfillment domain: a table service that
// takes orders, a kitchen that cooks, a delivery desk that serves and the
// saga that keeps every order moving until all of it reached the guest.
package restaurant

import (
	"github.com/abhissng/relay/serializer"
)

// OrderPlaced starts the fulfillment of one order.
type OrderPlaced struct {
	Guest  int   `json:"guest"`
	Order  int   `json:"order"`
	Food   []int `json:"food"`
	Drinks []int `json:"drinks"`
}

func (OrderPlaced) MessageType() string { return "restaurant.order-placed" }

// CookFood asks the kitchen to cook one dish.
type CookFood struct {
	Order int `json:"order"`
	Food  int `json:"food"`
}

func (CookFood) MessageType() string { return "restaurant.cook-food" }

// FoodCooked reports one cooked dish.
type FoodCooked struct {
	Order int `json:"order"`
	Food  int `json:"food"`
}

func (FoodCooked) MessageType() string { return "restaurant.food-cooked" }

// DeliverDrinks asks the delivery desk to bring the drinks of an order.
type DeliverDrinks struct {
	DeliveryRequest string `json:"deliveryRequest"`
	Order           int    `json:"order"`
	Drinks          []int  `json:"drinks"`
	Guest           int    `json:"guest"`
}

func (DeliverDrinks) MessageType() string { return "restaurant.deliver-drinks" }

// DeliverCookedFood asks the delivery desk to bring one cooked dish.
type DeliverCookedFood struct {
	DeliveryRequest string `json:"deliveryRequest"`
	Guest           int    `json:"guest"`
	Order           int    `json:"order"`
	Food            int    `json:"food"`
}

func (DeliverCookedFood) MessageType() string { return "restaurant.deliver-cooked-food" }

// ItemsDelivered confirms a delivery request.
type ItemsDelivered struct {
	DeliveryRequest string `json:"deliveryRequest"`
}

func (ItemsDelivered) MessageType() string { return "restaurant.items-delivered" }

// DidFoodPreparationFinish is the saga's reminder to check on the kitchen.
type DidFoodPreparationFinish struct {
	Order int `json:"order"`
}

func (DidFoodPreparationFinish) MessageType() string {
	return "restaurant.timeout.did-food-preparation-finish"
}

// DidItemDeliverySucceed is the saga's reminder to check on a delivery.
type DidItemDeliverySucceed struct {
	DeliveryRequest string `json:"deliveryRequest"`
}

func (DidItemDeliverySucceed) MessageType() string {
	return "restaurant.timeout.did-item-delivery-succeed"
}

// RegisterContracts registers every restaurant message with r.
func RegisterContracts(r *serializer.Registry) error {
	for _, register := range []func(*serializer.Registry) error{
		serializer.Register[OrderPlaced],
		serializer.Register[CookFood],
		serializer.Register[FoodCooked],
		serializer.Register[DeliverDrinks],
		serializer.Register[DeliverCookedFood],
		serializer.Register[ItemsDelivered],
		serializer.Register[DidFoodPreparationFinish],
		serializer.Register[DidItemDeliverySucceed],
	} {
		if err := register(r); err != nil {
			return err
		}
	}
	return nil
}
