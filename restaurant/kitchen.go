package restaurant

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/handler"
	"github.com/abhissng/relay/utils/constant"
)

// Sender publishes one envelope.
type Sender interface {
	Send(ctx context.Context, env envelope.Envelope) error
}

// Cook prepares one dish.
type Cook interface {
	Cook(ctx context.Context, order, food int) error
}

var errCookFailing = errors.New("cook is failing")

// FaultyCook fails a configurable share of dishes.
type FaultyCook struct {
	threshold float64
	cookTime  time.Duration
	mu        sync.Mutex
	rnd       *rand.Rand
}

// NewFaultyCook clamps threshold into [0, 1]. A nil src seeds from the runtime.
func NewFaultyCook(threshold float64, cookTime time.Duration, src rand.Source) *FaultyCook {
	threshold = min(max(threshold, 0), 1)
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &FaultyCook{threshold: threshold, cookTime: cookTime, rnd: rand.New(src)}
}

// Threshold returns the failure share.
func (c *FaultyCook) Threshold() float64 { return c.threshold }

// Cook implements Cook.
func (c *FaultyCook) Cook(ctx context.Context, order, food int) error {
	if c.cookTime > 0 {
		t := time.NewTimer(c.cookTime)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	c.mu.Lock()
	roll := c.rnd.Float64()
	c.mu.Unlock()
	if roll < c.threshold {
		return blame.CookingFailedError(order, food, errCookFailing)
	}
	return nil
}

// DefaultFinishedSize bounds the kitchen's memory of cooked dishes.
const DefaultFinishedSize = 4096

// Kitchen handles CookFood and reports FoodCooked.
type Kitchen struct {
	cook     Cook
	sender   Sender
	finished *expirable.LRU[string, struct{}]
	logger   *log.Log
}

// NewKitchen creates a kitchen. Cooked commands are remembered for ttl so a
// broker redelivery of the same command is answered without cooking again.
// Every distinct CookFood command cooks, including two commands for the same
// dish of one order.
func NewKitchen(cook Cook, sender Sender, size int, ttl time.Duration, logger *log.Log) *Kitchen {
	if size <= 0 {
		size = DefaultFinishedSize
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Kitchen{
		cook:     cook,
		sender:   sender,
		finished: expirable.NewLRU[string, struct{}](size, nil, ttl),
		logger:   logger,
	}
}

func commandKey(env envelope.Envelope, food int) string {
	return env.MessageID() + "/" + strconv.Itoa(food)
}

// Handle cooks the dish and publishes FoodCooked correlated with the command.
func (k *Kitchen) Handle(ctx context.Context, env envelope.Envelope, cmd CookFood) error {
	key := commandKey(env, cmd.Food)
	if _, ok := k.finished.Peek(key); !ok {
		k.logger.Info("Cooking food", log.Int("order", cmd.Order), log.Int("food", cmd.Food),
			log.String(constant.CorrelationID, env.CorrelationID()))
		if err := k.cook.Cook(ctx, cmd.Order, cmd.Food); err != nil {
			return err
		}
		k.finished.Add(key, struct{}{})
	}
	return k.sender.Send(ctx, envelope.CorrelateWith(env, FoodCooked(cmd)))
}

// Register routes CookFood to the kitchen.
func (k *Kitchen) Register(d *handler.Dispatcher) error {
	return handler.OnEnvelope(d, k.Handle)
}
