package restaurant

import (
	"context"
	"io"
	"time"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/engine"
	"github.com/abhissng/relay/handler"
	"github.com/abhissng/relay/saga"
	"github.com/abhissng/relay/serializer"
	"github.com/abhissng/relay/transport"
)

// Options wires a Restaurant. Zero values fall back to in-process defaults.
type Options struct {
	Logger            *log.Log
	Fulfillment       FulfillmentConfig
	Cook              Cook
	KitchenMemory     time.Duration
	Serializer        []serializer.Option
	Pipeline          []handler.PipelineOption
	Producer          []engine.ProducerOption
	Host              []engine.HostOption
	SagaStore         saga.Store[*OrderFulfillmentState]
	SagaMetrics       saga.Metrics
	ReleaseOnComplete bool
	Counter           OrderCounter
}

// Restaurant is the assembled order-fulfillment system on one broker.
type Restaurant struct {
	Serializer   *serializer.Serializer
	Producer     *engine.Producer
	Host         *engine.Host
	Tables       *TableService
	Orchestrator *saga.Orchestrator[*OrderFulfillmentState]
	Timeouts     *saga.TimeoutScheduler
	Kitchen      *Kitchen
	Delivery     *Delivery
	store        saga.Store[*OrderFulfillmentState]
}

// New provisions the topology when the broker supports it, then builds one
// pipeline per queue: kitchen, delivery desk and the saga inbox.
func New(ctx context.Context, broker transport.Broker, opts Options) (*Restaurant, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	if p, ok := broker.(transport.Provisioner); ok {
		if err := p.Provision(ctx, Topology()); err != nil {
			return nil, err
		}
	}

	registry := serializer.NewRegistry()
	if err := RegisterContracts(registry); err != nil {
		return nil, err
	}
	s := serializer.New(registry, opts.Serializer...)

	producer := engine.NewProducer(s, broker, append([]engine.ProducerOption{
		engine.WithRouter(Router()),
		engine.WithProducerLogger(logger),
	}, opts.Producer...)...)
	timeouts := saga.NewTimeoutScheduler(producer, saga.WithTimeoutLogger(logger))

	fcfg := opts.Fulfillment
	if fcfg.Logger == nil {
		fcfg.Logger = logger
	}
	definition, err := NewOrderFulfillment(fcfg)
	if err != nil {
		return nil, err
	}
	store := opts.SagaStore
	if store == nil {
		store = saga.NewMemoryStore[*OrderFulfillmentState](saga.WithStoreLogger(logger))
	}
	orchestratorOpts := []saga.OrchestratorOption{saga.WithLogger(logger), saga.WithMetrics(opts.SagaMetrics)}
	if opts.ReleaseOnComplete {
		orchestratorOpts = append(orchestratorOpts, saga.WithReleaseOnComplete())
	}
	orchestrator := saga.NewOrchestrator(definition, store, producer, timeouts, orchestratorOpts...)

	cook := opts.Cook
	if cook == nil {
		cook = NewFaultyCook(0, 0, nil)
	}
	kitchen := NewKitchen(cook, producer, DefaultFinishedSize, opts.KitchenMemory, logger)
	delivery := NewDelivery(producer, logger)

	kitchenRoutes := handler.NewDispatcher()
	if err := kitchen.Register(kitchenRoutes); err != nil {
		return nil, err
	}
	deliveryRoutes := handler.NewDispatcher()
	if err := delivery.Register(deliveryRoutes); err != nil {
		return nil, err
	}
	sagaRoutes := handler.NewDispatcher()
	if err := orchestrator.Register(sagaRoutes); err != nil {
		return nil, err
	}

	pipelineOpts := append([]handler.PipelineOption{handler.WithLogger(logger)}, opts.Pipeline...)
	subs := engine.NewSubscriptions().
		AddSubscriber(FoodPreparationQueue, handler.NewPipeline(s, kitchenRoutes, pipelineOpts...)).
		AddSubscriber(DeliveryQueue, handler.NewPipeline(s, deliveryRoutes, pipelineOpts...)).
		AddSubscriber(OrderFulfillmentQueue, handler.NewPipeline(s, sagaRoutes, pipelineOpts...))

	host := engine.NewHost(broker, append([]engine.HostOption{engine.WithHostLogger(logger)}, opts.Host...)...)
	if err := host.Subscribe(subs); err != nil {
		return nil, err
	}

	return &Restaurant{
		Serializer:   s,
		Producer:     producer,
		Host:         host,
		Tables:       NewTableService(producer, opts.Counter, logger),
		Orchestrator: orchestrator,
		Timeouts:     timeouts,
		Kitchen:      kitchen,
		Delivery:     delivery,
		store:        store,
	}, nil
}

// Run consumes every queue until ctx ends.
func (r *Restaurant) Run(ctx context.Context) error {
	return r.Host.Run(ctx)
}

// Shutdown stops the consumers, then the timeout scheduler and the saga store.
func (r *Restaurant) Shutdown(ctx context.Context) error {
	if err := r.Host.Shutdown(ctx); err != nil {
		return err
	}
	if err := r.Timeouts.Close(); err != nil {
		return err
	}
	if c, ok := r.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
