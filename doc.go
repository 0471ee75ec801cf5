// Package threadcompat is the synchronization substrate shared by a
// single-threaded, readiness driven main loop and the worker threads it
// offloads CPU bound work to.
//
// It provides:
//
//   - thread identity and lifecycle: Spawn, Exit, CurrentThreadID,
//     SetMainThread, InMainThread
//   - Mutex, recursive or not
//   - Cond, a condition variable with deadlines, backed natively or by a
//     generation counter emulation
//   - AtomicCounter, backed by native atomics or a Mutex
//   - ThreadLocal, per-thread slots
//
// The companion package alertsock provides the descriptors used to wake the
// main loop from other threads, and mainloop a readiness loop built on them.
//
// # Threads
//
// A thread is a goroutine. Threads started with Spawn are locked to their
// own OS thread for their whole life. The main thread is whichever thread
// calls ThreadsInit (or SetMainThread) first; the mark can't be moved.
//
// # Capabilities
//
// Backends are chosen at construction time, from a Capability set. Every
// primitive is native by default; masking capabilities out, per call or for
// the whole process via ThreadsInit, selects the fallback implementations:
//
//	c, _ := threadcompat.NewCond(threadcompat.WithCapabilities(0))
//	c.Backend() // CondEmulated
//
// # Errors
//
// Construction failures are returned. Caller bugs, such as releasing a
// mutex that isn't held, panic with a *UsageError. Cond waits report
// WaitTimedOut as a normal outcome, distinct from WaitWoken and WaitFailed.
package threadcompat
