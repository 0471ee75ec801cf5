package threadcompat

import (
	"sync"
	"time"
)

// wakeupEvent is an auto-reset wakeup object with a unit count: each post
// makes units available, each successful wait consumes exactly one. The
// buffered channel is the auto-reset signal, the count is its depth.
type wakeupEvent struct {
	signal chan struct{}
	mu     sync.Mutex
	units  uint
}

func newWakeupEvent() *wakeupEvent {
	return &wakeupEvent{signal: make(chan struct{}, 1)}
}

// post releases n units.
func (e *wakeupEvent) post(n uint) {
	if n == 0 {
		return
	}
	e.mu.Lock()
	e.units += n
	e.mu.Unlock()
	e.notify()
}

func (e *wakeupEvent) notify() {
	select {
	case e.signal <- struct{}{}:
	default:
	}
}

// wait consumes one unit, blocking until one is available, or timeout fires
// (a nil timeout blocks indefinitely). It reports whether a unit was taken.
func (e *wakeupEvent) wait(timeout <-chan time.Time) bool {
	for {
		e.mu.Lock()
		if e.units != 0 {
			e.units--
			more := e.units != 0
			e.mu.Unlock()
			if more {
				// pass the signal on, it was consumed (or will be) by us
				e.notify()
			}
			return true
		}
		e.mu.Unlock()

		select {
		case <-e.signal:
		case <-timeout:
			return false
		}
	}
}

// pending returns the number of unconsumed units.
func (e *wakeupEvent) pending() uint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.units
}

// deadlineTimer returns a channel that fires at deadline, and a func to
// release it. The zero deadline never fires (nil channel), and a deadline
// that has already passed fires immediately.
func deadlineTimer(deadline time.Time) (<-chan time.Time, func()) {
	if deadline.IsZero() {
		return nil, func() {}
	}
	d := time.Until(deadline)
	if d <= 0 {
		ch := make(chan time.Time, 1)
		ch <- deadline
		return ch, func() {}
	}
	t := time.NewTimer(d)
	return t.C, func() { t.Stop() }
}
