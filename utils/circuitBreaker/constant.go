package circuitBreaker

import "time"

const (
	DefaultCircuitBreakerName = "relay-publisher"
	DefaultBreakerTimeout     = 10 * time.Second
	DefaultBreakerInterval    = 30 * time.Second
	DefaultBreakerMaxRequests = 5
)
