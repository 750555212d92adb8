package schedule

import (
	"sync"
	"time"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/utils/constant"
)

const (
	DefaultName     = "Schedule"
	DefaultInterval = time.Minute
)

// ScheduleProcessor is invoked on every tick.
type ScheduleProcessor interface {
	Process(now time.Time)
}

// ProcessorFunc adapts a function to ScheduleProcessor.
type ProcessorFunc func(now time.Time)

// Process implements ScheduleProcessor.
func (f ProcessorFunc) Process(now time.Time) {
	f(now)
}

// Schedule executes a processor at a fixed interval until stopped.
type Schedule struct {
	name      string
	interval  time.Duration
	duration  time.Duration
	processor ScheduleProcessor
	log       *log.Log
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}
}

// NewSchedule creates a new Schedule with functional options.
func NewSchedule(processor ScheduleProcessor, opts ...Option) *Schedule {
	s := &Schedule{
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		log:       log.NewNopLogger(),
		processor: processor,
		name:      DefaultName,
		interval:  DefaultInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts the schedule in its own goroutine.
func (s *Schedule) Run() {
	if s.processor == nil {
		s.log.Error("Schedule processor is nil", log.String("schedule", s.name))
		close(s.done)
		return
	}

	ticker := time.NewTicker(s.interval)
	var endTime time.Time
	if s.duration > 0 {
		endTime = time.Now().Add(s.duration)
	}

	go func() {
		defer close(s.done)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				if s.duration > 0 && now.After(endTime) {
					return
				}
				s.tick(now)
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *Schedule) tick(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(constant.ScheduleTickFailed, log.String("schedule", s.name), log.Any("panic", r))
		}
	}()
	s.log.Debug("Schedule tick", log.String("schedule", s.name), log.Time("next", now.Add(s.interval)))
	s.processor.Process(now)
}

// Stop shuts down the schedule and waits for the running tick to finish.
func (s *Schedule) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	<-s.done
}
