package restaurant

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/go-playground/validator/v10"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/result"
	"github.com/abhissng/relay/utils/constant"
)

// PlaceOrderRequest is what a guest orders.
type PlaceOrderRequest struct {
	Guest  int   `json:"guest" validate:"gte=0"`
	Food   []int `json:"food" validate:"dive,gte=0"`
	Drinks []int `json:"drinks" validate:"dive,gte=0"`
}

// OrderCounter numbers orders.
type OrderCounter interface {
	Next() int
}

// AtomicCounter is an in-process OrderCounter starting at 1.
type AtomicCounter struct {
	n atomic.Int64
}

// Next implements OrderCounter.
func (c *AtomicCounter) Next() int {
	return int(c.n.Add(1))
}

var errEmptyOrder = errors.New("order has neither food nor drinks")

// OrderCorrelationID is the correlation id of order n.
func OrderCorrelationID(order int) string {
	return "order-request-" + strconv.Itoa(order)
}

// TableService takes orders and starts their fulfillment.
type TableService struct {
	sender   Sender
	counter  OrderCounter
	validate *validator.Validate
	logger   *log.Log
}

// NewTableService creates a table service.
func NewTableService(sender Sender, counter OrderCounter, logger *log.Log) *TableService {
	if counter == nil {
		counter = &AtomicCounter{}
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &TableService{
		sender:   sender,
		counter:  counter,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// PlaceOrder validates req, numbers it and publishes OrderPlaced. The
// returned envelope is the origin of the order's business transaction.
func (t *TableService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) result.Result[envelope.Envelope] {
	if err := t.validate.Struct(req); err != nil {
		return result.NewFailure[envelope.Envelope](blame.InvalidOrderError("validation failed", err))
	}
	if len(req.Food) == 0 && len(req.Drinks) == 0 {
		return result.NewFailure[envelope.Envelope](blame.InvalidOrderError("empty order", errEmptyOrder))
	}

	order := t.counter.Next()
	env := envelope.New(OrderPlaced{
		Guest:  req.Guest,
		Order:  order,
		Food:   append([]int(nil), req.Food...),
		Drinks: append([]int(nil), req.Drinks...),
	}, OrderCorrelationID(order))

	if err := t.sender.Send(ctx, env); err != nil {
		t.logger.Error(constant.EventPublishedFailed, log.Int("order", order), log.Err(err))
		var b blame.Blame
		if !errors.As(err, &b) {
			b = blame.PublishMessageError(TableServiceTopic, err)
		}
		return result.NewFailure[envelope.Envelope](b)
	}
	t.logger.Info("Order placed", log.Int("order", order), log.Int("guest", req.Guest),
		log.String(constant.CorrelationID, env.CorrelationID()))
	return result.NewSuccess(&env)
}
