package threadcompat

import (
	"runtime"
	"sync"
	"time"
)

// emulatedCond reconstructs condition variable semantics on top of an
// auto-reset wakeup object, which by itself releases an arbitrary waiter
// per unit and cannot tell old waiters from new ones.
//
// All counters are guarded by lock, which is never the caller's mutex.
// Invariants (under lock):
//   - toWake <= waiting
//   - a waiter may leave as woken only if toWake > 0 and the generation it
//     captured on entry is older than the current generation
//
// Units of the wakeup object are hints. A waiter that takes a unit it is not
// entitled to puts it back while entitled waiters remain (toWake > 0), and
// otherwise discards it, as nobody can use it.
type emulatedCond struct {
	event      *wakeupEvent
	lock       sync.Mutex
	waiting    uint
	toWake     uint
	generation uint64
}

func newEmulatedCond() *emulatedCond {
	return &emulatedCond{event: newWakeupEvent()}
}

func (c *emulatedCond) wait(m *Mutex, deadline time.Time) WaitResult {
	c.lock.Lock()
	c.waiting++
	generation := c.generation
	c.lock.Unlock()

	m.Release()

	timeout, stop := deadlineTimer(deadline)
	result := c.block(generation, timeout)
	stop()

	m.Acquire()
	return result
}

func (c *emulatedCond) block(generation uint64, timeout <-chan time.Time) WaitResult {
	for {
		took := c.event.wait(timeout)

		c.lock.Lock()
		if c.eligible(generation) {
			// released for our generation (even if we also timed out)
			c.toWake--
			c.waiting--
			c.lock.Unlock()
			return WaitWoken
		}
		if !took {
			c.waiting--
			c.lock.Unlock()
			return WaitTimedOut
		}
		// stale wakeup, or one meant for an older waiter
		repost := c.toWake != 0
		c.lock.Unlock()

		if repost {
			c.event.post(1)
			// let the entitled waiter(s) run, rather than spinning on the unit
			runtime.Gosched()
		}

		// the unit may be handed straight back to us, so the deadline must
		// be checked even though wait succeeded
		select {
		case <-timeout:
			c.lock.Lock()
			if c.eligible(generation) {
				c.toWake--
				c.waiting--
				c.lock.Unlock()
				return WaitWoken
			}
			c.waiting--
			c.lock.Unlock()
			return WaitTimedOut
		default:
		}
	}
}

// eligible must be called with lock held.
func (c *emulatedCond) eligible(generation uint64) bool {
	return c.toWake != 0 && generation < c.generation
}

func (c *emulatedCond) signalOne() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.toWake >= c.waiting {
		// nobody left to release, signals are not remembered
		return
	}
	c.toWake++
	c.generation++
	c.event.post(1)
}

func (c *emulatedCond) signalAll() {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.toWake >= c.waiting {
		return
	}
	n := c.waiting - c.toWake
	c.toWake = c.waiting
	c.generation++
	c.event.post(n)
}

func (c *emulatedCond) waiters() int {
	c.lock.Lock()
	defer c.lock.Unlock()
	return int(c.waiting)
}
