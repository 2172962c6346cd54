package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tinytelemetry/onuwatch/internal/model"
)

type fakeClock struct {
	tick   chan time.Time
	expire chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{tick: make(chan time.Time), expire: make(chan time.Time)}
}

func (c *fakeClock) Tick(time.Duration) (<-chan time.Time, func())  { return c.tick, func() {} }
func (c *fakeClock) After(time.Duration) (<-chan time.Time, func()) { return c.expire, func() {} }

// recorder counts callback invocations.
type recorder struct {
	mu        sync.Mutex
	completed []model.Job
	failed    []string
	errs      []error
	timeouts  int
}

func (r *recorder) callbacks() Callbacks {
	return Callbacks{
		OnComplete: func(job model.Job) { r.mu.Lock(); r.completed = append(r.completed, job); r.mu.Unlock() },
		OnFail:     func(detail string) { r.mu.Lock(); r.failed = append(r.failed, detail); r.mu.Unlock() },
		OnError:    func(err error) { r.mu.Lock(); r.errs = append(r.errs, err); r.mu.Unlock() },
		OnTimeout:  func() { r.mu.Lock(); r.timeouts++; r.mu.Unlock() },
	}
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.completed) + len(r.failed) + len(r.errs) + r.timeouts
}

// sequence returns a StatusFunc that replays statuses, repeating the last.
func sequence(calls *atomic.Int32, jobs ...model.Job) StatusFunc {
	return func(ctx context.Context, id string) (model.Job, error) {
		n := int(calls.Add(1)) - 1
		if n >= len(jobs) {
			n = len(jobs) - 1
		}
		job := jobs[n]
		job.ID = id
		return job, nil
	}
}

func waitDone(t *testing.T, h *Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not stop")
	}
}

func TestStart_CompletesExactlyOnce(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	rec := &recorder{}
	fetch := sequence(&calls,
		model.Job{Status: model.JobPending},
		model.Job{Status: model.JobProcessing},
		model.Job{Status: model.JobCompleted, Written: 7},
	)

	h := Start(context.Background(), fetch, "job-1", rec.callbacks(), WithClock(clock))
	for i := 0; i < 3; i++ {
		clock.tick <- time.Now()
	}
	waitDone(t, h)

	if calls.Load() != 3 {
		t.Errorf("fetches = %d, want 3", calls.Load())
	}
	if rec.total() != 1 || len(rec.completed) != 1 {
		t.Fatalf("callbacks = %+v, want one completion", rec)
	}
	if rec.completed[0].ID != "job-1" || rec.completed[0].Written != 7 {
		t.Errorf("completed job = %+v", rec.completed[0])
	}

	select {
	case clock.tick <- time.Now():
		t.Error("poll still consuming ticks after completion")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestStart_FailedCarriesDetail(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	rec := &recorder{}
	fetch := sequence(&calls, model.Job{Status: model.JobFailed, ErrorDetail: "fila de processamento cheia"})

	h := Start(context.Background(), fetch, "job-1", rec.callbacks(), WithClock(clock))
	clock.tick <- time.Now()
	waitDone(t, h)

	if rec.total() != 1 || len(rec.failed) != 1 || rec.failed[0] != "fila de processamento cheia" {
		t.Errorf("callbacks = %+v", rec)
	}
}

func TestStart_FetchErrorStops(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	rec := &recorder{}
	boom := errors.New("connection refused")
	fetch := func(ctx context.Context, id string) (model.Job, error) {
		calls.Add(1)
		return model.Job{}, boom
	}

	h := Start(context.Background(), fetch, "job-1", rec.callbacks(), WithClock(clock))
	clock.tick <- time.Now()
	waitDone(t, h)

	if calls.Load() != 1 {
		t.Errorf("fetches = %d, want 1", calls.Load())
	}
	if rec.total() != 1 || len(rec.errs) != 1 || !errors.Is(rec.errs[0], boom) {
		t.Errorf("callbacks = %+v", rec)
	}
}

func TestStart_Timeout(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	rec := &recorder{}
	fetch := sequence(&calls, model.Job{Status: model.JobProcessing})

	h := Start(context.Background(), fetch, "job-1", rec.callbacks(), WithClock(clock))
	clock.tick <- time.Now()
	clock.expire <- time.Now()
	waitDone(t, h)

	if rec.total() != 1 || rec.timeouts != 1 {
		t.Errorf("callbacks = %+v, want one timeout", rec)
	}
	if calls.Load() != 1 {
		t.Errorf("fetches = %d, want 1", calls.Load())
	}
}

func TestStart_TimeoutWithoutCallbackIsSilent(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	rec := &recorder{}
	cb := rec.callbacks()
	cb.OnTimeout = nil

	h := Start(context.Background(), sequence(&calls, model.Job{Status: model.JobPending}), "job-1", cb, WithClock(clock))
	clock.expire <- time.Now()
	waitDone(t, h)

	if rec.total() != 0 {
		t.Errorf("callbacks = %+v, want none", rec)
	}
}

func TestHandle_CancelStopsWithoutCallback(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	rec := &recorder{}

	h := Start(context.Background(), sequence(&calls, model.Job{Status: model.JobPending}), "job-1", rec.callbacks(), WithClock(clock))
	clock.tick <- time.Now()
	h.Cancel()
	h.Cancel()
	waitDone(t, h)

	if rec.total() != 0 {
		t.Errorf("callbacks after cancel = %+v", rec)
	}
}

func TestHandle_CancelDuringFetch(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	entered := make(chan struct{})
	fetch := func(ctx context.Context, id string) (model.Job, error) {
		close(entered)
		<-ctx.Done()
		return model.Job{}, ctx.Err()
	}

	h := Start(context.Background(), fetch, "job-1", rec.callbacks(), WithClock(clock))
	clock.tick <- time.Now()
	<-entered
	h.Cancel()
	waitDone(t, h)

	if rec.total() != 0 {
		t.Errorf("callbacks = %+v, want none", rec)
	}
}

func TestStart_ParentContextCancel(t *testing.T) {
	clock := newFakeClock()
	var calls atomic.Int32
	rec := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())

	h := Start(ctx, sequence(&calls, model.Job{Status: model.JobPending}), "job-1", rec.callbacks(), WithClock(clock))
	cancel()
	waitDone(t, h)

	if rec.total() != 0 || calls.Load() != 0 {
		t.Errorf("callbacks = %+v fetches = %d", rec, calls.Load())
	}
}

func TestStart_RealClockTimeout(t *testing.T) {
	var calls atomic.Int32
	rec := &recorder{}

	h := Start(context.Background(), sequence(&calls, model.Job{Status: model.JobProcessing}), "job-1", rec.callbacks(),
		WithInterval(5*time.Millisecond), WithTimeout(60*time.Millisecond))
	waitDone(t, h)

	if rec.total() != 1 || rec.timeouts != 1 {
		t.Errorf("callbacks = %+v, want one timeout", rec)
	}
	if calls.Load() == 0 {
		t.Error("no fetch happened before timeout")
	}
}

func TestStart_SlowFetchCannotOutliveTimeout(t *testing.T) {
	rec := &recorder{}
	returned := make(chan struct{})
	fetch := func(ctx context.Context, id string) (model.Job, error) {
		defer close(returned)
		time.Sleep(150 * time.Millisecond)
		return model.Job{ID: id, Status: model.JobCompleted}, nil
	}

	start := time.Now()
	h := Start(context.Background(), fetch, "job-1", rec.callbacks(),
		WithInterval(5*time.Millisecond), WithTimeout(40*time.Millisecond))
	waitDone(t, h)
	if elapsed := time.Since(start); elapsed > 120*time.Millisecond {
		t.Errorf("poll stopped after %s, want it to stop at the timeout", elapsed)
	}

	<-returned
	time.Sleep(10 * time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.timeouts != 1 || len(rec.completed) != 0 {
		t.Errorf("callbacks = %+v, want only the timeout", rec)
	}
}

func TestStart_ResultAfterExpiryIsDropped(t *testing.T) {
	clock := newFakeClock()
	rec := &recorder{}
	release := make(chan struct{})
	entered := make(chan struct{})
	fetch := func(ctx context.Context, id string) (model.Job, error) {
		close(entered)
		<-release
		return model.Job{ID: id, Status: model.JobFailed, ErrorDetail: "late"}, nil
	}

	h := Start(context.Background(), fetch, "job-1", rec.callbacks(), WithClock(clock))
	clock.tick <- time.Now()
	<-entered
	clock.expire <- time.Now()
	waitDone(t, h)
	close(release)

	if rec.total() != 1 || rec.timeouts != 1 {
		t.Errorf("callbacks = %+v, want one timeout", rec)
	}
}

func TestTracker_NewPollCancelsPrevious(t *testing.T) {
	first, second := newFakeClock(), newFakeClock()
	var calls atomic.Int32
	oldRec, newRec := &recorder{}, &recorder{}
	fetch := sequence(&calls, model.Job{Status: model.JobCompleted})

	var tr Tracker
	old := tr.Start(context.Background(), fetch, "job-old", oldRec.callbacks(), WithClock(first))
	cur := tr.Start(context.Background(), fetch, "job-new", newRec.callbacks(), WithClock(second))
	waitDone(t, old)

	select {
	case <-cur.Done():
		t.Fatal("new poll stopped before its first tick")
	default:
	}
	second.tick <- time.Now()
	waitDone(t, cur)

	if oldRec.total() != 0 {
		t.Errorf("stale poll delivered %+v", oldRec)
	}
	if len(newRec.completed) != 1 || newRec.completed[0].ID != "job-new" {
		t.Errorf("new poll callbacks = %+v", newRec)
	}
	tr.Cancel()
	tr.Cancel()
}
