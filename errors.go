package threadcompat

import (
	"errors"
)

var (
	// ErrNilEntry is returned by Spawn when the entry function is nil.
	ErrNilEntry = errors.New("threadcompat: nil thread entry function")

	// ErrThreadLimit is returned by Spawn when the configured maximum number
	// of concurrently running spawned threads has been reached.
	ErrThreadLimit = errors.New("threadcompat: thread limit reached")

	// ErrMainThreadSet is returned by SetMainThread when a different thread
	// has already been marked as the main thread.
	ErrMainThreadSet = errors.New("threadcompat: main thread already set")

	// ErrMutexUninitialized indicates use of a mutex that was never
	// initialized, or was uninitialized.
	ErrMutexUninitialized = errors.New("threadcompat: mutex not initialized")

	// ErrMutexNotHeld indicates a release of a mutex that is not held.
	ErrMutexNotHeld = errors.New("threadcompat: mutex not held")

	// ErrMutexNotOwner indicates a release of a recursive mutex by a thread
	// other than its holder.
	ErrMutexNotOwner = errors.New("threadcompat: mutex held by another thread")

	// ErrMutexReentered indicates a non-recursive mutex was acquired by the
	// thread already holding it.
	ErrMutexReentered = errors.New("threadcompat: non-recursive mutex re-entered")

	// ErrMutexHeld indicates an attempt to uninitialize a held mutex.
	ErrMutexHeld = errors.New("threadcompat: mutex is held")

	// ErrCondUninitialized indicates use of a condition variable that was
	// never initialized, or was uninitialized.
	ErrCondUninitialized = errors.New("threadcompat: condition variable not initialized")

	// ErrCondInUse indicates an attempt to uninitialize a condition variable
	// that still has waiters.
	ErrCondInUse = errors.New("threadcompat: condition variable has waiters")

	// ErrRecursiveMutex is returned when a recursive mutex is passed to a
	// condition variable wait.
	ErrRecursiveMutex = errors.New("threadcompat: condition variables require a non-recursive mutex")

	// ErrThreadLocalUninitialized indicates use of a thread-local slot that
	// was never initialized, or was destroyed.
	ErrThreadLocalUninitialized = errors.New("threadcompat: thread-local slot not initialized")
)

// UsageError is the panic value for caller bugs, e.g. releasing a mutex
// that isn't held. Err is one of the sentinels above, for errors.Is.
type UsageError struct {
	Op  string
	Err error
}

func (e *UsageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *UsageError) Unwrap() error {
	return e.Err
}

func usagePanic(op string, err error) {
	panic(&UsageError{Op: op, Err: err})
}
