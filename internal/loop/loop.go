package loop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Loop is the single-writer task loop.
type Loop struct {
	queue *taskQueue
	clock Clock
	async sync.WaitGroup
}

// Option configures a Loop.
type Option func(*Loop)

// WithClock replaces the system clock.
func WithClock(c Clock) Option {
	return func(l *Loop) {
		l.clock = c
	}
}

// New creates an idle loop. Call Run to start consuming tasks.
func New(opts ...Option) *Loop {
	l := &Loop{
		queue: newTaskQueue(),
		clock: SystemClock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Clock returns the clock timers are scheduled on.
func (l *Loop) Clock() Clock {
	return l.clock
}

// Now is shorthand for l.Clock().Now().
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

// Post enqueues fn to run on the loop. Returns false once the loop is stopped.
func (l *Loop) Post(name string, fn func()) bool {
	ok := l.queue.Enqueue(task{name: name, fn: fn})
	if !ok {
		slog.Debug("task dropped: loop stopped", "task", name)
	}
	return ok
}

// Go runs work on a new goroutine and posts then (if non-nil) back to the
// loop when work returns. Values flow from work to then through captured
// variables; the post orders the write before the read.
func (l *Loop) Go(name string, work func(), then func()) {
	l.async.Add(1)
	go func() {
		defer l.async.Done()
		work()
		if then != nil {
			l.Post(name, then)
		}
	}()
}

// AfterFunc schedules fn on the loop after d. The returned Timer is owned by
// the caller and must be stopped when the awaited condition resolves first.
func (l *Loop) AfterFunc(d time.Duration, name string, fn func()) *Timer {
	t := &Timer{name: name}
	t.stopper = l.clock.AfterFunc(d, func() {
		l.Post(name, func() {
			if t.stopped || t.fired {
				return
			}
			t.fired = true
			fn()
		})
	})
	return t
}

// Run consumes tasks until ctx is cancelled or Stop is called.
//
// A task that panics is logged and the loop keeps going: one bad event must
// not take the client down.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("event loop starting")

	for {
		if t, ok := l.queue.TryDequeue(); ok {
			l.execute(t)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("event loop stopping: context cancelled")
			l.queue.Close()
			return ctx.Err()

		case <-l.queue.Wait():
			if l.queue.Closed() && l.queue.Len() == 0 {
				slog.Info("event loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue; Run returns once it has drained.
func (l *Loop) Stop() {
	l.queue.Close()
}

// RunPending executes queued tasks on the calling goroutine until the queue
// is empty, including tasks posted by the tasks themselves. Returns the number
// of tasks executed.
func (l *Loop) RunPending() int {
	n := 0
	for {
		t, ok := l.queue.TryDequeue()
		if !ok {
			return n
		}
		l.execute(t)
		n++
	}
}

// Settle runs pending tasks and waits for in-flight Go work until the loop is
// quiescent. It does not advance the clock.
func (l *Loop) Settle() {
	for {
		l.RunPending()
		l.async.Wait()
		if l.queue.Len() == 0 {
			return
		}
	}
}

func (l *Loop) execute(t task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("task panicked",
				"task", t.name,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	t.fn()
}
