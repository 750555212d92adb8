package saga

import (
	"context"
	"sync"
	"time"

	"github.com/abhissng/relay/adapters/log"
	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/utils/constant"
)

// DelayedSender is the publishing side a TimeoutScheduler needs.
type DelayedSender interface {
	Send(ctx context.Context, env envelope.Envelope) error
	SendDelayed(ctx context.Context, env envelope.Envelope, delay time.Duration) error
	CanDelay() bool
}

// TimeoutScheduler sends timeout envelopes back to the saga inbox after a
// delay. A broker that can delay messages holds them; otherwise an in-process
// timer publishes them when due, and pending timers die with the process.
// Scheduled timeouts cannot be cancelled.
type TimeoutScheduler struct {
	sender   DelayedSender
	logger   *log.Log
	mu       sync.Mutex
	timers   map[*time.Timer]struct{}
	closed   bool
	inFlight sync.WaitGroup
}

// TimeoutOption configures a TimeoutScheduler.
type TimeoutOption func(*TimeoutScheduler)

// WithTimeoutLogger sets the scheduler logger.
func WithTimeoutLogger(logger *log.Log) TimeoutOption {
	return func(t *TimeoutScheduler) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTimeoutScheduler creates a scheduler publishing through sender.
func NewTimeoutScheduler(sender DelayedSender, opts ...TimeoutOption) *TimeoutScheduler {
	t := &TimeoutScheduler{
		sender: sender,
		logger: log.NewNopLogger(),
		timers: make(map[*time.Timer]struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Schedule implements Scheduler.
func (t *TimeoutScheduler) Schedule(ctx context.Context, env envelope.Envelope, after time.Duration) error {
	fields := []log.Field{
		log.String("type", env.Type()),
		log.String(constant.CorrelationID, env.CorrelationID()),
		log.Duration("after", after),
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return blame.SchedulerClosedError()
	}
	if t.sender.CanDelay() {
		t.mu.Unlock()
		if err := t.sender.SendDelayed(ctx, env, after); err != nil {
			return err
		}
		t.logger.Debug(constant.TimeoutScheduled, append(fields, log.Bool("broker", true))...)
		return nil
	}

	var timer *time.Timer
	timer = time.AfterFunc(after, func() {
		t.mu.Lock()
		if _, ok := t.timers[timer]; !ok {
			t.mu.Unlock()
			return
		}
		delete(t.timers, timer)
		t.inFlight.Add(1)
		t.mu.Unlock()
		defer t.inFlight.Done()

		if err := t.sender.Send(context.Background(), env); err != nil {
			t.logger.Error(constant.EventPublishedFailed, append(fields, log.Err(err))...)
			return
		}
		t.logger.Debug(constant.TimeoutFired, fields...)
	})
	t.timers[timer] = struct{}{}
	t.mu.Unlock()

	t.logger.Debug(constant.TimeoutScheduled, append(fields, log.Bool("broker", false))...)
	return nil
}

// Pending returns the number of in-process timers not yet fired.
func (t *TimeoutScheduler) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// Close drops pending in-process timers and waits for firing ones to publish.
func (t *TimeoutScheduler) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	for timer := range t.timers {
		timer.Stop()
	}
	clear(t.timers)
	t.mu.Unlock()
	t.inFlight.Wait()
	return nil
}

// Shutdown closes the scheduler; it satisfies graceful.Shutdowner.
func (t *TimeoutScheduler) Shutdown(context.Context) error {
	return t.Close()
}
