package schedule

import (
	"time"

	"github.com/abhissng/relay/adapters/log"
)

// Option is a functional option type for configuring the Schedule.
type Option func(*Schedule)

// WithName sets the name of the scheduler.
func WithName(name string) Option {
	return func(s *Schedule) {
		s.name = name
	}
}

// WithInterval sets the interval between executions.
func WithInterval(interval time.Duration) Option {
	return func(s *Schedule) {
		s.interval = interval
	}
}

// WithDuration sets the total duration for which the schedule will run.
func WithDuration(duration time.Duration) Option {
	return func(s *Schedule) {
		s.duration = duration
	}
}

// WithLogger sets the logger.
func WithLogger(log *log.Log) Option {
	return func(s *Schedule) {
		s.log = log
	}
}
