package threadcompat

import (
	"runtime"
	"sync/atomic"

	"github.com/joeycumines/go-threadcompat/internal/goid"
	"github.com/joeycumines/go-threadcompat/internal/logging"
)

// ThreadID identifies a thread for diagnostic purposes. It is stable for the
// lifetime of the thread, and never reused within the process. It must not
// be used for synchronization.
type ThreadID uint64

var (
	// mainThread is written once, see SetMainThread.
	mainThread atomic.Uint64

	// spawned tracks running threads started by Spawn, against maxThreads
	// (0 meaning unlimited).
	spawned    atomic.Int64
	maxThreads atomic.Int64
)

// ThreadsInit prepares the threading layer: it applies the process-wide
// options (WithCapabilities, WithMaxThreads), and marks the calling thread
// as the main thread. It may be called again from the main thread, e.g. to
// change the options, but returns ErrMainThreadSet from any other thread.
func ThreadsInit(opts ...Option) error {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return err
	}
	if err := SetMainThread(); err != nil {
		return err
	}
	if cfg.capsSet {
		processCaps.Store(uint32(cfg.caps))
	}
	if cfg.maxThreadsSet {
		maxThreads.Store(int64(cfg.maxThreads))
	}
	logging.Debug(logging.CategoryThread).
		Stringer("caps", Capabilities()).
		Int64("max_threads", maxThreads.Load()).
		Log("threads initialized")
	return nil
}

// Spawn starts a new thread running fn(data). The thread is locked to its
// own OS thread until it finishes, after which that OS thread is discarded.
//
// An error is returned if fn is nil, or if the WithMaxThreads limit has been
// reached. Spawn never blocks waiting for a slot.
func Spawn(fn func(data any), data any) error {
	if fn == nil {
		return ErrNilEntry
	}
	if !reserveThread() {
		logging.Warning(logging.CategoryThread).
			Int64("running", spawned.Load()).
			Log("spawn refused: thread limit reached")
		return ErrThreadLimit
	}
	go runThread(fn, data)
	return nil
}

func runThread(fn func(data any), data any) {
	// never unlocked, so the OS thread terminates along with this one
	runtime.LockOSThread()

	id := goid.Get()
	logging.Debug(logging.CategoryThread).
		Uint64("thread", id).
		Int("os_thread", OSThreadID()).
		Log("thread started")

	defer func() {
		releaseThreadLocals(id)
		spawned.Add(-1)
		logging.Debug(logging.CategoryThread).
			Uint64("thread", id).
			Log("thread exited")
	}()

	fn(data)
}

func reserveThread() bool {
	for {
		running := spawned.Load()
		if limit := maxThreads.Load(); limit > 0 && running >= limit {
			return false
		}
		if spawned.CompareAndSwap(running, running+1) {
			return true
		}
	}
}

// RunningThreads returns the number of threads started by Spawn that have
// not yet finished.
func RunningThreads() int {
	return int(spawned.Load())
}

// Exit terminates the calling thread. It never returns. Deferred calls run
// as the thread unwinds.
//
// Calling Exit from the program's initial goroutine ends only that
// goroutine; the process then exits with a deadlock error once all others
// finish, so it is meant for threads started by Spawn.
func Exit() {
	runtime.Goexit()
}

// CurrentThreadID returns the calling thread's identifier.
func CurrentThreadID() ThreadID {
	return ThreadID(goid.Get())
}

// SetMainThread marks the calling thread as the main (event loop) thread.
// The mark is write-once: repeated calls from the same thread are no-ops,
// and calls from any other thread fail with ErrMainThreadSet.
func SetMainThread() error {
	id := goid.Get()
	if mainThread.CompareAndSwap(0, id) || mainThread.Load() == id {
		return nil
	}
	return ErrMainThreadSet
}

// InMainThread reports whether the calling thread is the one marked by
// SetMainThread. It is false for every thread until SetMainThread is called.
func InMainThread() bool {
	id := mainThread.Load()
	return id != 0 && id == goid.Get()
}
