package nats

import "time"

const (
	BreakerName             = "NATSPublish"
	DefaultReconnectWait    = 5 * time.Second
	DefaultMaxReconnects    = -1 // Infinite reconnection attempts
	ConnectionFailedMessage = "connection to NATS is not yet established or failed"

	DefaultStreamName       = "RELAY"
	DefaultAckWait          = 30 * time.Second
	DefaultFetchWait        = 2 * time.Second
	DefaultMaxAckPending    = 1
	DefaultDuplicatesWindow = 2 * time.Minute
	DefaultDeadLetterMaxAge = 7 * 24 * time.Hour

	deadLetterSuffix = ".dead-letter"
	deadLetterStream = "_DEAD_LETTER"
)

// Header keys carrying transport.Message properties.
const (
	HeaderType          = "Relay-Type"
	HeaderContentType   = "Content-Type"
	HeaderCorrelationID = "Relay-Correlation-Id"
	HeaderMessageID     = "Relay-Message-Id"
)
