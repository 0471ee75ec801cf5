package threadcompat

import (
	"sync/atomic"
)

// AtomicCounter is an unsigned, word sized counter. Every operation is
// atomic with respect to every other, whichever backend was selected: with
// CapNativeAtomics it is lock-free, otherwise each operation takes an
// internal non-recursive Mutex. Callers may rely on atomicity only, not on
// lock-freedom.
//
// Arithmetic wraps, as for any unsigned word.
type AtomicCounter struct {
	native atomic.Uintptr
	mu     *Mutex
	val    uint
}

// NewAtomicCounter allocates and initializes a counter, with the value 0.
func NewAtomicCounter(opts ...Option) (*AtomicCounter, error) {
	c := new(AtomicCounter)
	if err := c.Init(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

// Init initializes c in place, with the value 0.
func (c *AtomicCounter) Init(opts ...Option) error {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return err
	}
	c.native.Store(0)
	c.val = 0
	if cfg.caps.Has(CapNativeAtomics) {
		c.mu = nil
	} else {
		c.mu = NewNonRecursiveMutex()
	}
	return nil
}

// Destroy releases the resources held by c.
func (c *AtomicCounter) Destroy() {
	if c.mu != nil {
		c.mu.Uninit()
		c.mu = nil
	}
}

// LockFree reports whether c uses native atomics.
func (c *AtomicCounter) LockFree() bool {
	return c.mu == nil
}

// Add adds n to the counter.
func (c *AtomicCounter) Add(n uint) {
	if c.mu == nil {
		c.native.Add(uintptr(n))
		return
	}
	c.mu.Acquire()
	c.val += n
	c.mu.Release()
}

// Sub subtracts n from the counter.
func (c *AtomicCounter) Sub(n uint) {
	if c.mu == nil {
		c.native.Add(^uintptr(n - 1))
		return
	}
	c.mu.Acquire()
	c.val -= n
	c.mu.Release()
}

// Get returns the current value.
func (c *AtomicCounter) Get() uint {
	if c.mu == nil {
		return uint(c.native.Load())
	}
	c.mu.Acquire()
	defer c.mu.Release()
	return c.val
}

// Exchange stores v, returning the previous value.
func (c *AtomicCounter) Exchange(v uint) uint {
	if c.mu == nil {
		return uint(c.native.Swap(uintptr(v)))
	}
	c.mu.Acquire()
	defer c.mu.Release()
	old := c.val
	c.val = v
	return old
}
