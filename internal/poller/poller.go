// Package poller watches an ingestion job until it reaches a terminal
// state, times out or is cancelled, and reports the outcome exactly once.
package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/onuwatch/internal/model"
)

// StatusFunc fetches the current state of a job.
type StatusFunc func(ctx context.Context, jobID string) (model.Job, error)

// Callbacks receive the outcome of a poll. At most one of them is called per
// Handle. Nil callbacks are skipped.
type Callbacks struct {
	OnComplete func(job model.Job)
	OnFail     func(detail string)
	OnError    func(err error)
	OnTimeout  func()
}

// Clock supplies the interval ticker and the timeout timer.
type Clock interface {
	Tick(d time.Duration) (<-chan time.Time, func())
	After(d time.Duration) (<-chan time.Time, func())
}

type realClock struct{}

func (realClock) Tick(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

func (realClock) After(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTimer(d)
	return t.C, func() { t.Stop() }
}

type options struct {
	interval time.Duration
	timeout  time.Duration
	clock    Clock
}

// Option configures a poll.
type Option func(*options)

// WithInterval sets the delay between status fetches.
func WithInterval(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithTimeout sets the overall deadline, measured from Start.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

const (
	stateRunning int32 = iota
	stateSettled
)

// Handle controls one running poll.
type Handle struct {
	jobID  string
	cancel context.CancelFunc
	done   chan struct{}
	state  atomic.Int32
}

// Start polls fetch for jobID every interval until the job is terminal,
// the timeout elapses or the poll is cancelled.
func Start(ctx context.Context, fetch StatusFunc, jobID string, cb Callbacks, opts ...Option) *Handle {
	o := options{
		interval: model.DefaultPollInterval,
		timeout:  model.DefaultPollTimeout,
		clock:    realClock{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		jobID:  jobID,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	tick, stopTick := o.clock.Tick(o.interval)
	expired, stopTimer := o.clock.After(o.timeout)

	go func() {
		defer close(h.done)
		defer cancel()
		defer stopTick()
		defer stopTimer()
		h.run(ctx, fetch, cb, tick, expired)
	}()
	return h
}

func (h *Handle) run(ctx context.Context, fetch StatusFunc, cb Callbacks, tick, expired <-chan time.Time) {
	timedOut := func() {
		if h.settle() && cb.OnTimeout != nil {
			cb.OnTimeout()
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-expired:
			timedOut()
			return
		case <-tick:
		}

		// The fetch runs aside so the deadline still fires while it is in
		// flight. Returning cancels ctx, which aborts a pending fetch.
		result := make(chan fetchResult, 1)
		go func() {
			job, err := fetch(ctx, h.jobID)
			result <- fetchResult{job, err}
		}()

		var job model.Job
		var err error
		select {
		case <-ctx.Done():
			return
		case <-expired:
			timedOut()
			return
		case r := <-result:
			job, err = r.job, r.err
		}
		if ctx.Err() != nil {
			return
		}
		select {
		case <-expired:
			timedOut()
			return
		default:
		}

		switch {
		case err != nil:
			if h.settle() && cb.OnError != nil {
				cb.OnError(err)
			}
			return
		case job.Status == model.JobCompleted:
			if h.settle() && cb.OnComplete != nil {
				cb.OnComplete(job)
			}
			return
		case job.Status == model.JobFailed:
			if h.settle() && cb.OnFail != nil {
				cb.OnFail(job.ErrorDetail)
			}
			return
		}
	}
}

type fetchResult struct {
	job model.Job
	err error
}

// settle claims the right to deliver the single outcome.
func (h *Handle) settle() bool {
	return h.state.CompareAndSwap(stateRunning, stateSettled)
}

// Cancel stops the poll. No callback runs once Cancel has returned, unless
// one was already being delivered. Safe to call more than once.
func (h *Handle) Cancel() {
	h.settle()
	h.cancel()
}

// Done is closed when the poll goroutine has exited.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Tracker keeps at most one active poll. Starting a new poll cancels the
// previous one.
type Tracker struct {
	mu      sync.Mutex
	current *Handle
}

// Start cancels any active poll and starts a new one.
func (t *Tracker) Start(ctx context.Context, fetch StatusFunc, jobID string, cb Callbacks, opts ...Option) *Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		t.current.Cancel()
	}
	t.current = Start(ctx, fetch, jobID, cb, opts...)
	return t.current
}

// Cancel stops the active poll, if any.
func (t *Tracker) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil {
		t.current.Cancel()
		t.current = nil
	}
}
