// Package config is the typed application configuration of cmd/relay.
package config

import (
	"time"

	"github.com/abhissng/relay/adapters/viper"
	"github.com/abhissng/relay/blame"
	"github.com/go-playground/validator/v10"
)

// Broker kinds.
const (
	BrokerMemory   = "memory"
	BrokerNATS     = "nats"
	BrokerRabbitMQ = "rabbitmq"
)

// In-process idempotency stores, used when Redis is disabled.
const (
	IdempotencyLRU    = "lru"
	IdempotencyMemory = "memory"
)

// ServiceConfig names the process and tunes its logger.
type ServiceConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogRotation bool   `mapstructure:"log_rotation"`
	LogFile     string `mapstructure:"log_file"`
}

// BrokerConfig selects and tunes the transport.
type BrokerConfig struct {
	Kind           string        `mapstructure:"kind" validate:"oneof=memory nats rabbitmq"`
	URL            string        `mapstructure:"url" validate:"required_unless=Kind memory"`
	StreamName     string        `mapstructure:"stream_name"`
	Prefetch       int           `mapstructure:"prefetch" validate:"gte=1"`
	AckWait        time.Duration `mapstructure:"ack_wait" validate:"gte=0"`
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout" validate:"gte=0"`
}

// RedisConfig enables the Redis idempotency and saga stores.
type RedisConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Addr           string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password       string        `mapstructure:"password"`
	DB             int           `mapstructure:"db" validate:"gte=0"`
	KeyPrefix      string        `mapstructure:"key_prefix"`
	FingerprintTTL time.Duration `mapstructure:"fingerprint_ttl" validate:"gte=0"`
}

// HTTPConfig tunes the order intake API.
type HTTPConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Port            string        `mapstructure:"port" validate:"required_if=Enabled true"`
	RateLimit       float64       `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst       int           `mapstructure:"rate_burst" validate:"gte=0"`
	RateTTL         time.Duration `mapstructure:"rate_ttl" validate:"gte=0"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout" validate:"gte=0"`
	LogResponseBody bool          `mapstructure:"log_response_body"`
}

// PipelineConfig tunes every handler chain.
type PipelineConfig struct {
	Format           string        `mapstructure:"format" validate:"oneof=json msgpack yaml"`
	MaxRetries       int           `mapstructure:"max_retries" validate:"gte=0"`
	RetryWait        time.Duration `mapstructure:"retry_wait" validate:"gte=0"`
	SkipDuplicates   bool          `mapstructure:"skip_duplicates"`
	IdempotencyStore string        `mapstructure:"idempotency_store" validate:"oneof=lru memory"`
	IdempotencySize  int           `mapstructure:"idempotency_size" validate:"gte=1"`
	IdempotencyTTL   time.Duration `mapstructure:"idempotency_ttl" validate:"gte=0"`
}

// RestaurantConfig tunes the order fulfillment saga and the simulated kitchen.
type RestaurantConfig struct {
	FoodTimeout          time.Duration `mapstructure:"food_timeout" validate:"gt=0"`
	DeliveryTimeout      time.Duration `mapstructure:"delivery_timeout" validate:"gt=0"`
	MaxFoodReissues      int           `mapstructure:"max_food_reissues" validate:"gte=-1"`
	MaxDeliveryReissues  int           `mapstructure:"max_delivery_reissues" validate:"gte=-1"`
	CookFailureThreshold float64       `mapstructure:"cook_failure_threshold" validate:"gte=0,lte=1"`
	CookTime             time.Duration `mapstructure:"cook_time" validate:"gte=0"`
	KitchenMemory        time.Duration `mapstructure:"kitchen_memory" validate:"gte=0"`
	ReleaseOnComplete    bool          `mapstructure:"release_on_complete"`
	SagaRetention        time.Duration `mapstructure:"saga_retention" validate:"gte=0"`
}

// MetricsConfig toggles the Prometheus collector.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AppConfig is the whole configuration.
type AppConfig struct {
	Service    ServiceConfig    `mapstructure:"service"`
	Broker     BrokerConfig     `mapstructure:"broker"`
	Redis      RedisConfig      `mapstructure:"redis"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Restaurant RestaurantConfig `mapstructure:"restaurant"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// Defaults returns every key with its default; environment variables can
// only override keys listed here.
func Defaults() map[string]any {
	return map[string]any{
		"service.name":         "relay",
		"service.environment":  "dev",
		"service.log_level":    "info",
		"service.log_rotation": false,
		"service.log_file":     "",

		"broker.kind":            BrokerMemory,
		"broker.url":             "",
		"broker.stream_name":     "RELAY",
		"broker.prefetch":        1,
		"broker.ack_wait":        "30s",
		"broker.breaker_timeout": "30s",

		"redis.enabled":         false,
		"redis.addr":            "",
		"redis.password":        "",
		"redis.db":              0,
		"redis.key_prefix":      "relay",
		"redis.fingerprint_ttl": "24h",

		"http.enabled":           true,
		"http.port":              "8080",
		"http.rate_limit":        50.0,
		"http.rate_burst":        100,
		"http.rate_ttl":          "5m",
		"http.graceful_timeout":  "10s",
		"http.log_response_body": false,

		"pipeline.format":            "json",
		"pipeline.max_retries":       3,
		"pipeline.retry_wait":        "100ms",
		"pipeline.skip_duplicates":   false,
		"pipeline.idempotency_store": IdempotencyLRU,
		"pipeline.idempotency_size":  10_000,
		"pipeline.idempotency_ttl":   "1h",

		"restaurant.food_timeout":           "10s",
		"restaurant.delivery_timeout":       "10s",
		"restaurant.max_food_reissues":      3,
		"restaurant.max_delivery_reissues":  3,
		"restaurant.cook_failure_threshold": 0.0,
		"restaurant.cook_time":              "0s",
		"restaurant.kitchen_memory":         "1h",
		"restaurant.release_on_complete":    false,
		"restaurant.saga_retention":         "24h",

		"metrics.enabled": true,
	}
}

// Load reads <dir>/<environment>/relay.yaml when present, applies RELAY_*
// overrides, resolves {{.KEY}} placeholders from the environment and
// validates the result.
func Load(dir string) (*AppConfig, error) {
	v := viper.NewViper("relay", "yaml", dir)
	v.SetDefaults(Defaults())
	if err := v.InitialiseViper(true); err != nil {
		return nil, blame.ConfigLoadFailure(err)
	}
	if err := v.LoadDynamicConfig(viper.EnvSource{}); err != nil {
		return nil, blame.ConfigLoadFailure(err)
	}

	cfg := &AppConfig{}
	if err := viper.UnmarshalConfig(v, cfg); err != nil {
		return nil, blame.ConfigLoadFailure(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags.
func (c *AppConfig) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return blame.ConfigLoadFailure(err)
	}
	return nil
}
