package saga_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/saga"
)

type fakeSender struct {
	mu      sync.Mutex
	delay   bool
	sent    []envelope.Envelope
	delayed []time.Duration
}

func (f *fakeSender) Send(_ context.Context, env envelope.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeSender) SendDelayed(_ context.Context, env envelope.Envelope, d time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, env)
	f.delayed = append(f.delayed, d)
	return nil
}

func (f *fakeSender) CanDelay() bool { return f.delay }

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestTimeoutFiresInProcess(t *testing.T) {
	sender := &fakeSender{}
	ts := saga.NewTimeoutScheduler(sender)
	defer func() { _ = ts.Close() }()

	require.NoError(t, ts.Schedule(context.Background(), envelope.New(checkTotal{}, "c"), 10*time.Millisecond))
	assert.Equal(t, 1, ts.Pending())
	assert.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Zero(t, ts.Pending())
}

func TestTimeoutUsesBrokerDelay(t *testing.T) {
	sender := &fakeSender{delay: true}
	ts := saga.NewTimeoutScheduler(sender)

	require.NoError(t, ts.Schedule(context.Background(), envelope.New(checkTotal{}, "c"), time.Minute))
	assert.Zero(t, ts.Pending())
	assert.Equal(t, []time.Duration{time.Minute}, sender.delayed)
}

func TestCloseDropsPendingTimeouts(t *testing.T) {
	sender := &fakeSender{}
	ts := saga.NewTimeoutScheduler(sender)

	require.NoError(t, ts.Schedule(context.Background(), envelope.New(checkTotal{}, "c"), time.Hour))
	require.NoError(t, ts.Shutdown(context.Background()))
	assert.Zero(t, ts.Pending())
	assert.Zero(t, sender.count())

	err := ts.Schedule(context.Background(), envelope.New(checkTotal{}, "c"), time.Second)
	assert.True(t, blame.IsCode(err, blame.ErrorSchedulerClosed))
}
