package saga_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhissng/relay/blame"
	"github.com/abhissng/relay/envelope"
	"github.com/abhissng/relay/handler"
	"github.com/abhissng/relay/saga"
)

type tally struct {
	Count int
	Seen  []string
}

func (t *tally) Clone() *tally {
	return &tally{Count: t.Count, Seen: append([]string(nil), t.Seen...)}
}

type add struct {
	N    int    `json:"n"`
	Fail bool   `json:"fail"`
	Tag  string `json:"tag"`
}

func (add) MessageType() string { return "test.add" }

type added struct {
	Total int `json:"total"`
}

func (added) MessageType() string { return "test.added" }

type checkTotal struct{}

func (checkTotal) MessageType() string { return "test.check-total" }

type recorder struct {
	mu        sync.Mutex
	sent      []envelope.Envelope
	scheduled []envelope.Envelope
	err       error
}

func (r *recorder) SendAll(_ context.Context, envs ...envelope.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, envs...)
	return nil
}

func (r *recorder) Schedule(_ context.Context, env envelope.Envelope, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled = append(r.scheduled, env)
	return nil
}

func newTallySaga(t *testing.T) *saga.Saga[*tally] {
	t.Helper()
	s := saga.New("tally", func() *tally { return &tally{} }).
		CompleteWhen(func(st *tally) bool { return st.Count >= 10 })
	require.NoError(t, saga.On(s, func(_ context.Context, sc *saga.Context[*tally], msg add) error {
		st := sc.State()
		st.Count += msg.N
		st.Seen = append(st.Seen, msg.Tag)
		if msg.Fail {
			return errors.New("transition failed")
		}
		sc.Send(added{Total: st.Count})
		if sc.Created() {
			sc.RequestTimeout(checkTotal{}, time.Second)
		}
		return nil
	}))
	require.NoError(t, saga.OnTimeout(s, func(context.Context, *saga.Context[*tally], checkTotal) error {
		return nil
	}))
	return s
}

func TestOrchestratorTransitions(t *testing.T) {
	rec := &recorder{}
	store := saga.NewMemoryStore[*tally](saga.WithRetention(0))
	o := saga.NewOrchestrator(newTallySaga(t), store, rec, rec)

	first := envelope.New(add{N: 2, Tag: "a"}, "order-1")
	require.NoError(t, o.Handle(context.Background(), first))
	require.NoError(t, o.Handle(context.Background(), envelope.CorrelateWith(first, add{N: 3, Tag: "b"})))

	st, ok, err := o.State(context.Background(), "order-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 5, st.Count)
	assert.Equal(t, []string{"a", "b"}, st.Seen)

	require.Len(t, rec.sent, 2)
	for _, env := range rec.sent {
		assert.Equal(t, "order-1", env.CorrelationID())
	}
	assert.Equal(t, first.MessageID(), rec.sent[0].CausationID())
	require.Len(t, rec.scheduled, 1)
	assert.Equal(t, "test.check-total", rec.scheduled[0].Type())
}

func TestFailedTransitionLeavesStateUntouched(t *testing.T) {
	rec := &recorder{}
	store := saga.NewMemoryStore[*tally](saga.WithRetention(0))
	o := saga.NewOrchestrator(newTallySaga(t), store, rec, rec)

	require.NoError(t, o.Handle(context.Background(), envelope.New(add{N: 1, Tag: "ok"}, "c")))
	err := o.Handle(context.Background(), envelope.New(add{N: 5, Fail: true, Tag: "bad"}, "c"))
	assert.True(t, blame.IsCode(err, blame.ErrorSagaTransitionFailed))
	assert.True(t, blame.IsRetryable(err))

	st, _, _ := o.State(context.Background(), "c")
	assert.Equal(t, 1, st.Count)
	assert.Equal(t, []string{"ok"}, st.Seen)
	assert.Len(t, rec.sent, 1)

	// a failed first message creates nothing
	require.Error(t, o.Handle(context.Background(), envelope.New(add{Fail: true}, "d")))
	_, ok, _ := o.State(context.Background(), "d")
	assert.False(t, ok)
}

func TestPublishFailureSavesNothing(t *testing.T) {
	rec := &recorder{err: errors.New("broker down")}
	store := saga.NewMemoryStore[*tally](saga.WithRetention(0))
	o := saga.NewOrchestrator(newTallySaga(t), store, rec, rec)

	assert.Error(t, o.Handle(context.Background(), envelope.New(add{N: 1}, "c")))
	assert.Zero(t, store.Len())
}

func TestMissingCorrelationID(t *testing.T) {
	rec := &recorder{}
	o := saga.NewOrchestrator(newTallySaga(t), saga.NewMemoryStore[*tally](saga.WithRetention(0)), rec, rec)
	env := envelope.Restore("test.add", add{N: 1}, map[string]string{})
	err := o.Handle(context.Background(), env)
	assert.True(t, blame.IsCode(err, blame.ErrorMissingCorrelationID))
	assert.False(t, blame.IsRetryable(err))
}

func TestReleaseOnComplete(t *testing.T) {
	rec := &recorder{}
	store := saga.NewMemoryStore[*tally](saga.WithRetention(0))
	o := saga.NewOrchestrator(newTallySaga(t), store, rec, rec, saga.WithReleaseOnComplete())

	require.NoError(t, o.Handle(context.Background(), envelope.New(add{N: 4}, "c")))
	assert.Equal(t, 1, store.Len())
	require.NoError(t, o.Handle(context.Background(), envelope.New(add{N: 6}, "c")))
	assert.Zero(t, store.Len())
}

func TestSameCorrelationIDIsSerialised(t *testing.T) {
	rec := &recorder{}
	store := saga.NewMemoryStore[*tally](saga.WithRetention(0))
	o := saga.NewOrchestrator(newTallySaga(t), store, rec, rec, saga.WithLockStripes(4))

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, o.Handle(context.Background(), envelope.New(add{N: 1}, "shared")))
		}()
	}
	wg.Wait()

	st, _, _ := o.State(context.Background(), "shared")
	assert.Equal(t, 50, st.Count)
}

func TestRegisterWithDispatcher(t *testing.T) {
	s := newTallySaga(t)
	assert.Equal(t, []string{"test.add", "test.check-total"}, s.Types())
	assert.Equal(t, []string{"test.check-total"}, s.Timeouts())
	assert.True(t, blame.IsCode(saga.On(s, func(context.Context, *saga.Context[*tally], add) error { return nil }),
		blame.ErrorDuplicateRegistration))

	rec := &recorder{}
	o := saga.NewOrchestrator(s, saga.NewMemoryStore[*tally](saga.WithRetention(0)), rec, rec)
	d := handler.NewDispatcher()
	require.NoError(t, o.Register(d))
	require.NoError(t, d.Handle(context.Background(), envelope.New(add{N: 1}, "x")))
	assert.Len(t, rec.sent, 1)
}

func TestMemoryStoreSweep(t *testing.T) {
	var now atomic.Int64
	now.Store(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).UnixNano())
	clock := func() time.Time { return time.Unix(0, now.Load()) }

	store := saga.NewMemoryStore[*tally](
		saga.WithRetention(time.Hour),
		saga.WithSweepInterval(time.Hour),
		saga.WithStoreClock(clock))
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "old", &tally{}))
	now.Add(int64(45 * time.Minute))
	require.NoError(t, store.Save(ctx, "new", &tally{}))
	now.Add(int64(30 * time.Minute))

	assert.Equal(t, 1, store.Sweep())
	_, ok, _ := store.Load(ctx, "old")
	assert.False(t, ok)
	_, ok, _ = store.Load(ctx, "new")
	assert.True(t, ok)
}

func TestIgnoredMessageSavesNothing(t *testing.T) {
	s := saga.New("ignoring", func() *tally { return &tally{} })
	require.NoError(t, saga.On(s, func(_ context.Context, sc *saga.Context[*tally], _ add) error {
		sc.Send(added{})
		sc.Ignore()
		return nil
	}))
	rec := &recorder{}
	store := saga.NewMemoryStore[*tally](saga.WithRetention(0))
	o := saga.NewOrchestrator(s, store, rec, rec)

	require.NoError(t, o.Handle(context.Background(), envelope.New(add{N: 1}, "c")))
	assert.Zero(t, store.Len())
	assert.Empty(t, rec.sent)
}
