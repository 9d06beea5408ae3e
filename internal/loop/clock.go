package loop

import "time"

// Clock abstracts wall time so timer-driven behaviour can be tested
// deterministically.
type Clock interface {
	Now() time.Time
	// AfterFunc calls f in its own goroutine once d has elapsed.
	AfterFunc(d time.Duration, f func()) Stopper
}

// Stopper cancels a scheduled callback. Stop reports whether the call
// prevented the callback from running.
type Stopper interface {
	Stop() bool
}

// SystemClock is the production Clock backed by package time.
type SystemClock struct{}

// Now returns the current wall time.
func (SystemClock) Now() time.Time { return time.Now() }

// AfterFunc wraps time.AfterFunc.
func (SystemClock) AfterFunc(d time.Duration, f func()) Stopper {
	return time.AfterFunc(d, f)
}

// Timer is a cancellable timer owned by a loop component.
//
// The firing callback runs on the loop. Stop must be called from the loop; it
// cancels the underlying clock timer and also suppresses a firing that was
// already posted but not yet executed.
type Timer struct {
	name    string
	stopper Stopper
	stopped bool
	fired   bool
}

// Stop cancels the timer. Safe on a nil or already stopped timer.
func (t *Timer) Stop() {
	if t == nil || t.stopped {
		return
	}
	t.stopped = true
	if t.stopper != nil {
		t.stopper.Stop()
	}
}

// Active reports whether the timer is still pending.
func (t *Timer) Active() bool {
	return t != nil && !t.stopped && !t.fired
}

// Name returns the label the timer was scheduled with.
func (t *Timer) Name() string {
	if t == nil {
		return ""
	}
	return t.name
}
