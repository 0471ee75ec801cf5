package threadcompat

import (
	"fmt"
	"sync/atomic"
	"time"
)

// WaitResult is the outcome of a Cond wait.
type WaitResult int

const (
	// WaitFailed indicates the wait did not happen, see the accompanying
	// error. The mutex is left as it was.
	WaitFailed WaitResult = -1
	// WaitWoken indicates the waiter was released by a signal. The
	// predicate must still be re-checked, as with any condition variable.
	WaitWoken WaitResult = 0
	// WaitTimedOut indicates the deadline elapsed first.
	WaitTimedOut WaitResult = 1
)

func (r WaitResult) String() string {
	switch r {
	case WaitFailed:
		return "failed"
	case WaitWoken:
		return "woken"
	case WaitTimedOut:
		return "timed-out"
	default:
		return fmt.Sprintf("WaitResult(%d)", int(r))
	}
}

// CondBackend identifies the implementation behind a Cond.
type CondBackend int

const (
	// CondNative parks each waiter on its own channel, in FIFO order.
	CondNative CondBackend = iota + 1
	// CondEmulated is the generation counter scheme built on an auto-reset
	// wakeup object, used when CapNativeCond is unavailable.
	CondEmulated
)

func (b CondBackend) String() string {
	switch b {
	case CondNative:
		return "native"
	case CondEmulated:
		return "emulated"
	default:
		return fmt.Sprintf("CondBackend(%d)", int(b))
	}
}

// condImpl is implemented by each backend. The caller of wait has already
// validated that m is a non-recursive mutex held by the calling thread, and
// wait must return with m held again, on every path.
type condImpl interface {
	wait(m *Mutex, deadline time.Time) WaitResult
	signalOne()
	signalAll()
	waiters() int
}

type condState struct {
	impl    condImpl
	backend CondBackend
}

// Cond is a condition variable, used with a non-recursive Mutex.
//
// Waits may return without the awaited condition holding (a spurious
// wakeup), so callers must wait in a loop, checking their predicate under
// the same mutex used for waiting:
//
//	m.Acquire()
//	for !ready {
//		if _, err := c.Wait(m); err != nil {
//			...
//		}
//	}
//	m.Release()
//
// Signals are not buffered: SignalOne and SignalAll affect only threads
// already waiting.
type Cond struct {
	state atomic.Pointer[condState]
}

// NewCond allocates and initializes a condition variable.
func NewCond(opts ...Option) (*Cond, error) {
	c := new(Cond)
	if err := c.Init(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// Init initializes c in place, selecting the backend from the capabilities
// (see WithCapabilities, defaulting to Capabilities()).
func (c *Cond) Init(opts ...Option) error {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return err
	}
	state := condState{backend: CondEmulated}
	if cfg.caps.Has(CapNativeCond) {
		state.backend = CondNative
		state.impl = newNativeCond()
	} else {
		state.impl = newEmulatedCond()
	}
	if old := c.state.Load(); old != nil && old.impl.waiters() != 0 {
		usagePanic("Cond.Init", ErrCondInUse)
	}
	c.state.Store(&state)
	return nil
}

// Uninit releases the resources of c, leaving it uninitialized. It panics
// if there are waiters.
func (c *Cond) Uninit() {
	if state := c.state.Load(); state != nil && state.impl.waiters() != 0 {
		usagePanic("Cond.Uninit", ErrCondInUse)
	}
	c.state.Store(nil)
}

// Free uninitializes a Cond obtained from NewCond. It is nil-safe.
func (c *Cond) Free() {
	if c != nil {
		c.Uninit()
	}
}

// Backend reports the implementation in use, or 0 if uninitialized.
func (c *Cond) Backend() CondBackend {
	if state := c.state.Load(); state != nil {
		return state.backend
	}
	return 0
}

// Wait atomically releases m and blocks until signalled, then re-acquires m.
// It has no deadline.
func (c *Cond) Wait(m *Mutex) (WaitResult, error) {
	return c.wait(m, time.Time{})
}

// WaitTimeout is like Wait, but gives up once d has elapsed. A d <= 0 is a
// poll: m is released and re-acquired, but the call does not block waiting
// for a signal. Either way m is held on return, unless WaitFailed.
func (c *Cond) WaitTimeout(m *Mutex, d time.Duration) (WaitResult, error) {
	deadline := time.Now()
	if d > 0 {
		deadline = deadline.Add(d)
	}
	return c.wait(m, deadline)
}

// WaitDeadline is like Wait, but gives up at deadline. The zero time means
// no deadline, and a deadline in the past behaves as a poll.
func (c *Cond) WaitDeadline(m *Mutex, deadline time.Time) (WaitResult, error) {
	return c.wait(m, deadline)
}

func (c *Cond) wait(m *Mutex, deadline time.Time) (WaitResult, error) {
	state := c.state.Load()
	if state == nil {
		return WaitFailed, ErrCondUninitialized
	}
	if m == nil || !m.initialized() {
		return WaitFailed, ErrMutexUninitialized
	}
	if m.Recursive() {
		return WaitFailed, ErrRecursiveMutex
	}
	if !m.HeldByCaller() {
		return WaitFailed, ErrMutexNotHeld
	}
	return state.impl.wait(m, deadline), nil
}

// SignalOne wakes at most one waiting thread. It is a no-op without waiters.
func (c *Cond) SignalOne() {
	if state := c.state.Load(); state != nil {
		state.impl.signalOne()
	}
}

// SignalAll wakes every thread waiting at the time of the call.
func (c *Cond) SignalAll() {
	if state := c.state.Load(); state != nil {
		state.impl.signalAll()
	}
}
