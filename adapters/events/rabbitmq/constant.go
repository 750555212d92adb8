package rabbitmq

import "time"

const (
	BreakerName          = "RabbitMQPublish"
	DefaultPrefetchCount = 1
	DefaultExchangeType  = "fanout"
	DelayedExchangeType  = "x-delayed-message"
	DefaultDialTimeout   = 10 * time.Second
	DefaultHeartbeat     = 10 * time.Second

	headerDelay           = "x-delay"
	argDelayedType        = "x-delayed-type"
	argDeadLetterExchange = "x-dead-letter-exchange"
	argDeadLetterKey      = "x-dead-letter-routing-key"
	deadLetterSuffix      = ".dead-letter"
)
