package saga

import (
	"context"
	"time"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/handler"
	"github.com/abhissng/relay/utils/concurrent/keyedMutex"
	"github.com/abhissng/relay/utils/constant"
)

// Sender publishes envelopes emitted by transitions.
type Sender interface {
	SendAll(ctx context.Context, envs ...envelope.Envelope) error
}

// Scheduler delivers an envelope back after a delay.
type Scheduler interface {
	Schedule(ctx context.Context, env envelope.Envelope, after time.Duration) error
}

// Metrics receives saga observations.
type Metrics interface {
	IncTimeoutScheduled(saga string)
	SetSagaInstances(saga string, n int)
}

type noopMetrics struct{}

func (noopMetrics) IncTimeoutScheduled(string)   {}
func (noopMetrics) SetSagaInstances(string, int) {}

// Orchestrator runs a Saga against a Store. Messages for one correlation id
// are applied one at a time; different ids proceed in parallel.
type Orchestrator[S State[S]] struct {
	saga              *Saga[S]
	store             Store[S]
	sender            Sender
	scheduler         Scheduler
	locks             *keyedMutex.KeyedMutex
	logger            *log.Log
	metrics           Metrics
	releaseOnComplete bool
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*orchestratorConfig)

type orchestratorConfig struct {
	logger            *log.Log
	metrics           Metrics
	stripes           int
	releaseOnComplete bool
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger *log.Log) OrchestratorOption {
	return func(c *orchestratorConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) OrchestratorOption {
	return func(c *orchestratorConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithLockStripes sets the number of lock stripes.
func WithLockStripes(n int) OrchestratorOption {
	return func(c *orchestratorConfig) { c.stripes = n }
}

// WithReleaseOnComplete deletes an instance once its completion predicate holds.
// Late messages for a released id start a fresh instance.
func WithReleaseOnComplete() OrchestratorOption {
	return func(c *orchestratorConfig) { c.releaseOnComplete = true }
}

// NewOrchestrator binds saga to its store and outbound collaborators.
func NewOrchestrator[S State[S]](saga *Saga[S], store Store[S], sender Sender, scheduler Scheduler, opts ...OrchestratorOption) *Orchestrator[S] {
	cfg := &orchestratorConfig{logger: log.NewNopLogger(), metrics: noopMetrics{}}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Orchestrator[S]{
		saga:              saga,
		store:             store,
		sender:            sender,
		scheduler:         scheduler,
		locks:             keyedMutex.New(cfg.stripes),
		logger:            cfg.logger.With(log.String("saga", saga.Name())),
		metrics:           cfg.metrics,
		releaseOnComplete: cfg.releaseOnComplete,
	}
}

// Register routes every type the saga handles to the orchestrator.
func (o *Orchestrator[S]) Register(d *handler.Dispatcher) error {
	for _, tag := range o.saga.Types() {
		if err := d.Register(tag, o); err != nil {
			return err
		}
	}
	return nil
}

// State returns a copy of the stored state of correlationID.
func (o *Orchestrator[S]) State(ctx context.Context, correlationID string) (S, bool, error) {
	state, ok, err := o.store.Load(ctx, correlationID)
	if err != nil || !ok {
		return state, ok, err
	}
	return state.Clone(), true, nil
}

// Handle implements handler.Handler. A failed transition stores nothing and
// emits nothing. Emitted envelopes are published before the new state is
// saved, so a publish failure leaves the state as it was for the retry.
func (o *Orchestrator[S]) Handle(ctx context.Context, env envelope.Envelope) error {
	correlationID := env.CorrelationID()
	if correlationID == "" {
		return blame.MissingCorrelationIDError(env.MessageID())
	}
	tr, ok := o.saga.handlers[env.Type()]
	if !ok {
		return blame.NoHandlerRegisteredError(env.Type())
	}

	unlock := o.locks.Lock(correlationID)
	defer unlock()

	sc, wasComplete, err := o.load(ctx, env)
	if err != nil {
		return blame.SagaTransitionError(o.saga.Name(), env.Type(), err)
	}
	if err := tr(ctx, sc); err != nil {
		return blame.SagaTransitionError(o.saga.Name(), env.Type(), err)
	}
	if sc.ignored {
		o.logger.Debug(constant.SagaIgnored, log.String(constant.CorrelationID, correlationID), log.String("type", env.Type()))
		return nil
	}
	if err := o.flush(ctx, sc); err != nil {
		return blame.SagaTransitionError(o.saga.Name(), env.Type(), err)
	}

	fields := []log.Field{
		log.String(constant.CorrelationID, correlationID),
		log.String("type", env.Type()),
		log.Int("sent", len(sc.sends)),
		log.Int("timeouts", len(sc.timeouts)),
	}
	if sc.created {
		o.logger.Info(constant.SagaStarted, fields...)
	} else {
		o.logger.Debug(constant.SagaTransitioned, fields...)
	}

	complete := o.saga.IsComplete(sc.state)
	if complete && !wasComplete {
		o.logger.Info(constant.SagaCompleted, fields...)
	}
	if complete && o.releaseOnComplete {
		err = o.store.Delete(ctx, correlationID)
	} else {
		err = o.store.Save(ctx, correlationID, sc.state)
	}
	o.metrics.SetSagaInstances(o.saga.Name(), o.store.Len())
	return err
}

func (o *Orchestrator[S]) load(ctx context.Context, env envelope.Envelope) (*Context[S], bool, error) {
	stored, found, err := o.store.Load(ctx, env.CorrelationID())
	if err != nil {
		return nil, false, err
	}
	sc := &Context[S]{trigger: env}
	if found {
		sc.state = stored.Clone()
		return sc, o.saga.IsComplete(stored), nil
	}
	sc.state = o.saga.init()
	sc.created = true
	return sc, false, nil
}

func (o *Orchestrator[S]) flush(ctx context.Context, sc *Context[S]) error {
	if len(sc.sends) > 0 {
		if err := o.sender.SendAll(ctx, sc.sends...); err != nil {
			return err
		}
	}
	for _, t := range sc.timeouts {
		if err := o.scheduler.Schedule(ctx, t.env, t.after); err != nil {
			return err
		}
		o.metrics.IncTimeoutScheduled(o.saga.Name())
	}
	return nil
}
