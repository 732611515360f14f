package filter

import (
	"sync"
	"time"
)

// DefaultDelay is the quiet window after the last keystroke.
const DefaultDelay = 600 * time.Millisecond

// Timer is the part of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// Clock schedules f after d. The real clock is time.AfterFunc.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Debouncer runs only the last function handed to Trigger, once no new
// Trigger arrived for the configured delay (trailing edge).
type Debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	clock Clock
	timer Timer
	seq   uint64
}

// NewDebouncer returns a debouncer using the wall clock. A non-positive
// delay selects DefaultDelay.
func NewDebouncer(delay time.Duration) *Debouncer {
	return NewDebouncerWithClock(delay, realClock{})
}

// NewDebouncerWithClock is NewDebouncer with an injected clock.
func NewDebouncerWithClock(delay time.Duration, clock Clock) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{delay: delay, clock: clock}
}

// Delay returns the quiet window.
func (d *Debouncer) Delay() time.Duration { return d.delay }

// Trigger cancels the pending call, if any, and schedules f.
func (d *Debouncer) Trigger(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.timer = d.clock.AfterFunc(d.delay, func() {
		d.mu.Lock()
		// Stop can lose the race with a timer that already fired.
		current := seq == d.seq
		if current {
			d.timer = nil
		}
		d.mu.Unlock()
		if current {
			f()
		}
	})
}

// Stop cancels the pending call.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.seq++
}
