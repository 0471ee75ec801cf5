package threadcompat

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-threadcompat/internal/goid"
)

const (
	mutexInitialized uint32 = 1 << iota
	mutexRecursive
)

// Mutex is a lock that tracks its holding thread.
//
// A recursive mutex (NewMutex, Init) may be re-acquired by its holder, and
// is released once every acquisition has been matched by a release. A
// non-recursive mutex (NewNonRecursiveMutex, InitNonRecursive) must never be
// re-entered, and is the only kind accepted by Cond.
//
// Misuse (acquiring an uninitialized mutex, re-entering a non-recursive
// mutex, releasing a mutex the caller does not hold) panics with a
// *UsageError. The zero value is not initialized.
type Mutex struct {
	mu sync.Mutex
	// owner is the holder's ThreadID, or 0. Only the holder writes a
	// non-zero value, so a thread observing its own ID holds the lock.
	owner atomic.Uint64
	flags atomic.Uint32
	// depth is the acquisition count, only accessed by the holder
	depth int32
}

// NewMutex allocates and initializes a recursive mutex.
func NewMutex() *Mutex {
	m := new(Mutex)
	m.Init()
	return m
}

// NewNonRecursiveMutex allocates and initializes a non-recursive mutex.
func NewNonRecursiveMutex() *Mutex {
	m := new(Mutex)
	m.InitNonRecursive()
	return m
}

// Init initializes m in place, as a recursive mutex.
func (m *Mutex) Init() {
	m.init("Mutex.Init", mutexInitialized|mutexRecursive)
}

// InitNonRecursive initializes m in place, as a non-recursive mutex.
func (m *Mutex) InitNonRecursive() {
	m.init("Mutex.InitNonRecursive", mutexInitialized)
}

func (m *Mutex) init(op string, flags uint32) {
	if m.owner.Load() != 0 {
		usagePanic(op, ErrMutexHeld)
	}
	m.depth = 0
	m.flags.Store(flags)
}

// Acquire blocks until the calling thread holds m.
func (m *Mutex) Acquire() {
	flags := m.flags.Load()
	if flags&mutexInitialized == 0 {
		usagePanic("Mutex.Acquire", ErrMutexUninitialized)
	}
	id := goid.Get()
	if m.owner.Load() == id {
		if flags&mutexRecursive == 0 {
			usagePanic("Mutex.Acquire", ErrMutexReentered)
		}
		m.depth++
		return
	}
	m.mu.Lock()
	m.owner.Store(id)
	m.depth = 1
}

// Release releases one acquisition of m. It must be called by the holder.
func (m *Mutex) Release() {
	if m.flags.Load()&mutexInitialized == 0 {
		usagePanic("Mutex.Release", ErrMutexUninitialized)
	}
	switch owner := m.owner.Load(); owner {
	case 0:
		usagePanic("Mutex.Release", ErrMutexNotHeld)
	case goid.Get():
	default:
		usagePanic("Mutex.Release", ErrMutexNotOwner)
	}
	m.depth--
	if m.depth > 0 {
		return
	}
	m.owner.Store(0)
	m.mu.Unlock()
}

// Uninit releases the resources of an initialized mutex, leaving it
// uninitialized. Uninitializing a held mutex panics.
func (m *Mutex) Uninit() {
	if m.owner.Load() != 0 {
		usagePanic("Mutex.Uninit", ErrMutexHeld)
	}
	m.flags.Store(0)
}

// Free uninitializes a mutex obtained from NewMutex or NewNonRecursiveMutex.
// It is nil-safe. The memory itself is reclaimed by the garbage collector.
func (m *Mutex) Free() {
	if m != nil {
		m.Uninit()
	}
}

// Recursive reports whether m was initialized as a recursive mutex.
func (m *Mutex) Recursive() bool {
	return m.flags.Load()&mutexRecursive != 0
}

// HeldByCaller reports whether the calling thread holds m.
func (m *Mutex) HeldByCaller() bool {
	return m.owner.Load() == goid.Get()
}

func (m *Mutex) initialized() bool {
	return m.flags.Load()&mutexInitialized != 0
}
