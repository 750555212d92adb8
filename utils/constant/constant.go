package constant

import (
	"time"

	"github.com/abhissng/relay/utils/types"
)

// Reserved envelope metadata keys.
const (
	CorrelationID = "correlation_id"
	CausationID   = "causation_id"
	MessageID     = "message_id"
	SentAt        = "sent_at"
)

// These are general constant for config file and environment
const (
	Service            = "service.name"
	Environment        = "ENVIRONMENT"
	RunMode            = "RUN_MODE"
	LogRotationEnabled = "LOG_ROTATION_ENABLED"
	EnvPrefix          = "RELAY"
)

// Delivery outcomes reported by a consumer.
const (
	Acked    types.Outcome = "acked"
	Requeued types.Outcome = "requeued"
	Rejected types.Outcome = "rejected"
)

// GraceFul Shutdown Constants
const (
	ServerDefaultGracefulTime time.Duration = 10 * time.Second
)

// HTTP request keys
const (
	RequestID           = "request_id"
	RequestIDHeader     = "X-Request-ID"
	CorrelationIDHeader = "X-Correlation-ID"
	TCP                 = "tcp"
)
