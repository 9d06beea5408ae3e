package testutil

import (
	"sort"
	"sync"
	"time"

	"github.com/iamp15/elpatio-appCajeros/internal/loop"
)

// Epoch is the start time of every ManualClock unless overridden.
var Epoch = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

// ManualClock is a loop.Clock whose time only moves when Advance is called.
//
// Callbacks run synchronously inside Advance, in deadline order (ties broken
// by scheduling order). With a loop built on this clock, a fired timer only
// posts a task; call loop.RunPending (or use Drive) to execute it.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	clock   *ManualClock
	at      time.Time
	seq     int
	f       func()
	stopped bool
}

// NewManualClock creates a clock starting at Epoch.
func NewManualClock() *ManualClock {
	return &ManualClock{now: Epoch}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Elapsed returns the time advanced since Epoch.
func (c *ManualClock) Elapsed() time.Duration {
	return c.Now().Sub(Epoch)
}

// AfterFunc registers f to run once the clock reaches now+d.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) loop.Stopper {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &manualTimer{clock: c, at: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Stop cancels the timer.
func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.stopped {
		return false
	}
	t.stopped = true
	t.clock.remove(t)
	return true
}

// Advance moves the clock forward by d, firing every timer that falls due.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDue(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		c.now = next.at
		next.stopped = true
		c.remove(next)
		c.mu.Unlock()

		next.f()
	}
}

// NextDeadline returns the earliest pending deadline.
func (c *ManualClock) NextDeadline() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.timers) == 0 {
		return time.Time{}, false
	}
	c.sortTimers()
	return c.timers[0].at, true
}

// Pending returns the number of scheduled, unfired timers.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// nextDue returns the earliest timer due at or before target. Caller holds mu.
func (c *ManualClock) nextDue(target time.Time) *manualTimer {
	if len(c.timers) == 0 {
		return nil
	}
	c.sortTimers()
	if c.timers[0].at.After(target) {
		return nil
	}
	return c.timers[0]
}

func (c *ManualClock) sortTimers() {
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].at.Equal(c.timers[j].at) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].at.Before(c.timers[j].at)
	})
}

func (c *ManualClock) remove(t *manualTimer) {
	for i, x := range c.timers {
		if x == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}

// Drive advances clk by d while keeping l quiescent: every timer that falls
// due is fired at its own deadline and its task executed before time moves
// on, so timers scheduled by those tasks are honoured within the same call.
func Drive(l *loop.Loop, clk *ManualClock, d time.Duration) {
	target := clk.Now().Add(d)
	l.Settle()
	for {
		at, ok := clk.NextDeadline()
		if !ok || at.After(target) {
			break
		}
		clk.Advance(at.Sub(clk.Now()))
		l.Settle()
	}
	clk.Advance(target.Sub(clk.Now()))
	l.Settle()
}

// NewLoop returns a loop running on a fresh ManualClock.
func NewLoop() (*loop.Loop, *ManualClock) {
	clk := NewManualClock()
	return loop.New(loop.WithClock(clk)), clk
}
