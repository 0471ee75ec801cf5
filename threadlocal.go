package threadcompat

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-threadcompat/internal/goid"
)

// ThreadLocal is a per-thread slot: each thread observes only the value it
// set itself, and a slot the calling thread never set reads as the zero
// value of T.
//
// The slot must be initialized with Init before use, and not used after
// Destroy; either misuse panics with a *UsageError. Values held for threads
// started by Spawn are dropped when those threads finish.
type ThreadLocal[T any] struct {
	// values maps thread ID to T
	values      sync.Map
	initialized atomic.Bool
}

// Init initializes the slot, with no values set.
func (x *ThreadLocal[T]) Init() error {
	x.values.Clear()
	x.initialized.Store(true)
	threadLocals.add(x)
	return nil
}

// Destroy releases every value held by the slot.
func (x *ThreadLocal[T]) Destroy() {
	x.initialized.Store(false)
	threadLocals.remove(x)
	x.values.Clear()
}

// Get returns the calling thread's value.
func (x *ThreadLocal[T]) Get() (value T) {
	x.check("ThreadLocal.Get")
	if v, ok := x.values.Load(goid.Get()); ok {
		value, _ = v.(T)
	}
	return
}

// Set changes the calling thread's value.
func (x *ThreadLocal[T]) Set(value T) {
	x.check("ThreadLocal.Set")
	x.values.Store(goid.Get(), value)
}

// Clear resets the calling thread's value to unset.
func (x *ThreadLocal[T]) Clear() {
	x.check("ThreadLocal.Clear")
	x.values.Delete(goid.Get())
}

func (x *ThreadLocal[T]) check(op string) {
	if !x.initialized.Load() {
		usagePanic(op, ErrThreadLocalUninitialized)
	}
}

func (x *ThreadLocal[T]) forget(id uint64) {
	x.values.Delete(id)
}

// threadLocalSlot erases ThreadLocal's type parameter for the registry.
type threadLocalSlot interface {
	forget(id uint64)
}

// threadLocals tracks live slots, so values of finished threads can be
// released.
var threadLocals threadLocalRegistry

type threadLocalRegistry struct {
	slots map[threadLocalSlot]struct{}
	mu    sync.Mutex
}

func (r *threadLocalRegistry) add(slot threadLocalSlot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.slots == nil {
		r.slots = make(map[threadLocalSlot]struct{})
	}
	r.slots[slot] = struct{}{}
}

func (r *threadLocalRegistry) remove(slot threadLocalSlot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.slots, slot)
}

func (r *threadLocalRegistry) snapshot() []threadLocalSlot {
	r.mu.Lock()
	defer r.mu.Unlock()
	slots := make([]threadLocalSlot, 0, len(r.slots))
	for slot := range r.slots {
		slots = append(slots, slot)
	}
	return slots
}

// releaseThreadLocals drops the values of the given thread, from every slot.
func releaseThreadLocals(id uint64) {
	for _, slot := range threadLocals.snapshot() {
		slot.forget(id)
	}
}
