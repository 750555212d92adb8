// Package app assembles the restaurant from an AppConfig: logger, broker,
// stores, metrics, the order fulfillment system and its HTTP intake.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/abhissng/relay/adapters/events/nats"
	"github.com/abhissng/relay/adapters/events/rabbitmq"
	"github.com/abhissng/relay/adapters/gin/middleware"
	"github.com/abhissng/relay/adapters/gin/server"
	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/adapters/prometheus"
	"github.com/abhissng/relay/adapters/redis"
	"github.com/abhissng/relay/config"
	"github.com/abhissng/relay/engine"
	"github.com/abhissng/relay/handler"
	"github.com/abhissng/relay/restaurant"
	"github.com/abhissng/relay/saga"
	"github.com/abhissng/relay/serializer"
	"github.com/abhissng/relay/transport"
	"github.com/abhissng/relay/transport/memory"
	"github.com/abhissng/relay/utils/circuitBreaker"
	"github.com/abhissng/relay/utils/constant"
	"github.com/abhissng/relay/utils/graceful"
	"github.com/abhissng/relay/utils/helpers"
	"github.com/abhissng/relay/utils/idempotency"
	"github.com/abhissng/relay/utils/types"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
)

// DefaultLogFile is used when rotation is on and no file is configured.
const DefaultLogFile = "logs/relay.log"

// App is the running process.
type App struct {
	cfg         *config.AppConfig
	Logger      *log.Log
	Metrics     *prometheus.MetricsCollector
	Broker      transport.Broker
	Restaurant  *restaurant.Restaurant
	Server      *server.Server
	Idempotency idempotency.Store
	limiter     *middleware.IPRateLimiter
	redis       *redis.RedisManager
	seen        *idempotency.MemoryStore
}

// Option customises New, mostly for tests.
type Option func(*options)

type options struct {
	broker transport.Broker
	logger *log.Log
	cook   restaurant.Cook
}

// WithBroker uses b instead of dialing the configured broker.
func WithBroker(b transport.Broker) Option {
	return func(o *options) { o.broker = b }
}

// WithLogger uses logger instead of building one from the service config.
func WithLogger(logger *log.Log) Option {
	return func(o *options) { o.logger = logger }
}

// WithCook replaces the faulty cook.
func WithCook(c restaurant.Cook) Option {
	return func(o *options) { o.cook = c }
}

// NewLogger builds the zap logger described by cfg.
func NewLogger(cfg config.ServiceConfig) (*log.Log, error) {
	opts := []log.LoggerOption{
		log.WithLevel(cfg.LogLevel),
		log.WithServiceName(cfg.Name),
		log.WithEnvironment(cfg.Environment),
	}
	if cfg.LogRotation || helpers.GetIsLogRotationEnabled() {
		file := cfg.LogFile
		if file == "" {
			file = DefaultLogFile
		}
		opts = append(opts, log.WithRotationFile(file))
	}
	return log.NewLogger(log.NewLoggerConfig(helpers.IsProdEnvironment(), opts...))
}

// New builds every component without starting consumers or the server.
func New(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*App, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{cfg: cfg, Logger: o.logger}
	if a.Logger == nil {
		logger, err := NewLogger(cfg.Service)
		if err != nil {
			return nil, err
		}
		a.Logger = logger
	}
	if cfg.Metrics.Enabled {
		a.Metrics = prometheus.NewMetricsCollector(prometheus.WithServiceName(cfg.Service.Name))
	}

	a.Broker = o.broker
	if a.Broker == nil {
		b, err := newBroker(cfg.Broker, a.Logger)
		if err != nil {
			return nil, err
		}
		a.Broker = b
	}

	store, sagaStore, err := a.stores()
	if err != nil {
		_ = a.Broker.Close()
		return nil, err
	}
	a.Idempotency = store

	pipeline := []handler.PipelineOption{
		handler.WithRetry(cfg.Pipeline.MaxRetries, cfg.Pipeline.RetryWait),
		handler.WithMetrics(a.metrics()),
	}
	var idem []handler.IdempotencyOption
	if cfg.Pipeline.SkipDuplicates {
		idem = append(idem, handler.WithSkipDuplicates())
	}
	pipeline = append(pipeline, handler.WithIdempotencyStore(store, idem...))

	cook := o.cook
	if cook == nil {
		cook = restaurant.NewFaultyCook(cfg.Restaurant.CookFailureThreshold, cfg.Restaurant.CookTime, nil)
	}

	r, err := restaurant.New(ctx, a.Broker, restaurant.Options{
		Logger: a.Logger,
		Fulfillment: restaurant.FulfillmentConfig{
			FoodTimeout:         cfg.Restaurant.FoodTimeout,
			DeliveryTimeout:     cfg.Restaurant.DeliveryTimeout,
			MaxFoodReissues:     cfg.Restaurant.MaxFoodReissues,
			MaxDeliveryReissues: cfg.Restaurant.MaxDeliveryReissues,
		},
		Cook:              cook,
		KitchenMemory:     cfg.Restaurant.KitchenMemory,
		Serializer:        []serializer.Option{serializer.WithFormat(types.CodecType(cfg.Pipeline.Format))},
		Pipeline:          pipeline,
		Producer:          []engine.ProducerOption{engine.WithBreaker(a.breaker("producer"))},
		Host:              []engine.HostOption{engine.WithHostMetrics(a.hostMetrics())},
		SagaStore:         sagaStore,
		SagaMetrics:       a.sagaMetrics(),
		ReleaseOnComplete: cfg.Restaurant.ReleaseOnComplete,
	})
	if err != nil {
		_ = a.close()
		return nil, err
	}
	a.Restaurant = r

	if cfg.HTTP.Enabled {
		a.Server = a.newServer()
	}
	return a, nil
}

// metrics helpers keep a disabled collector out of the interfaces; a nil
// pointer inside an interface would still be non-nil there.
func (a *App) metrics() handler.Metrics {
	if a.Metrics == nil {
		return nil
	}
	return a.Metrics
}

func (a *App) hostMetrics() engine.Metrics {
	if a.Metrics == nil {
		return nil
	}
	return a.Metrics
}

func (a *App) sagaMetrics() saga.Metrics {
	if a.Metrics == nil {
		return nil
	}
	return a.Metrics
}

func (a *App) breaker(name string) *gobreaker.CircuitBreaker {
	opts := []circuitBreaker.CircuitBreakerOption{
		circuitBreaker.WithName(name),
		circuitBreaker.WithOnStateChange(func(name string, from, to gobreaker.State) {
			a.Logger.Warn("Circuit breaker state changed", log.String("breaker", name),
				log.Stringer("from", from), log.Stringer("to", to))
		}),
	}
	if a.cfg.Broker.BreakerTimeout > 0 {
		opts = append(opts, circuitBreaker.WithTimeout(a.cfg.Broker.BreakerTimeout))
	}
	return circuitBreaker.NewCircuitBreaker(opts...)
}

func newBroker(cfg config.BrokerConfig, logger *log.Log) (transport.Broker, error) {
	switch cfg.Kind {
	case config.BrokerNATS:
		return nats.NewBroker(cfg.URL,
			nats.WithLogger(logger),
			nats.WithStreamName(cfg.StreamName),
			nats.WithAckWait(cfg.AckWait),
			nats.WithMaxAckPending(cfg.Prefetch),
		)
	case config.BrokerRabbitMQ:
		return rabbitmq.NewBroker(cfg.URL,
			rabbitmq.WithLogger(logger),
			rabbitmq.WithPrefetchCount(cfg.Prefetch),
		)
	case config.BrokerMemory, "":
		return memory.NewBroker(), nil
	default:
		return nil, fmt.Errorf("unknown broker kind %q", cfg.Kind)
	}
}

// stores picks Redis when enabled, otherwise bounded in-process stores.
func (a *App) stores() (idempotency.Store, saga.Store[*restaurant.OrderFulfillmentState], error) {
	cfg := a.cfg
	if !cfg.Redis.Enabled {
		sagaStore := saga.NewMemoryStore[*restaurant.OrderFulfillmentState](
			saga.WithStoreLogger(a.Logger),
			saga.WithRetention(cfg.Restaurant.SagaRetention),
		)
		if cfg.Pipeline.IdempotencyStore == config.IdempotencyMemory {
			a.seen = idempotency.NewMemoryStore(cfg.Pipeline.IdempotencyTTL)
			return a.seen, sagaStore, nil
		}
		return idempotency.NewLRUStore(cfg.Pipeline.IdempotencySize, cfg.Pipeline.IdempotencyTTL), sagaStore, nil
	}

	manager, err := redis.NewRedisManager(redis.Config{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
	})
	if err != nil {
		return nil, nil, err
	}
	a.redis = manager
	return redis.NewIdempotencyStore(manager, cfg.Redis.FingerprintTTL),
		redis.NewSagaStore(manager, restaurant.SagaName,
			redis.WithStateRetention[*restaurant.OrderFulfillmentState](cfg.Restaurant.SagaRetention)), nil
}

// Run consumes every queue and serves HTTP until ctx ends, then shuts down.
func (a *App) Run(ctx context.Context) error {
	a.Logger.Info(constant.SystemStarted, log.String("broker", a.cfg.Broker.Kind))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.Restaurant.Run(gctx) })
	if a.Server != nil {
		g.Go(func() error { return a.Server.Run(gctx) })
	}
	err := g.Wait()

	grace := a.cfg.HTTP.GracefulTimeout
	if grace <= 0 {
		grace = constant.ServerDefaultGracefulTime
	}
	return errors.Join(err, graceful.GracefulShutdown(gctx, grace, graceful.ShutdownFunc(a.Shutdown)))
}

// Shutdown stops consumers and timers and releases connections.
func (a *App) Shutdown(ctx context.Context) error {
	err := a.Restaurant.Shutdown(ctx)
	err = errors.Join(err, a.close())
	a.Logger.Info(constant.SystemStopped, log.Err(err))
	_ = a.Logger.Sync()
	return err
}

func (a *App) close() error {
	var errs []error
	if a.Broker != nil {
		errs = append(errs, a.Broker.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.seen != nil {
		a.seen.Close()
	}
	return errors.Join(errs...)
}
