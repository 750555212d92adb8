package handler

import "time"

// Metrics receives handler-level observations. Implementations must be safe
// for concurrent use.
type Metrics interface {
	ObserveHandler(messageType string, elapsed time.Duration, err error)
	IncRetry(messageType string)
	IncDuplicate(messageType string)
}

type noopMetrics struct{}

func (noopMetrics) ObserveHandler(string, time.Duration, error) {}
func (noopMetrics) IncRetry(string)                             {}
func (noopMetrics) IncDuplicate(string)                         {}
