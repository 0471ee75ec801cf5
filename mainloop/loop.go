// Package mainloop is a single threaded readiness loop, woken from other
// threads through an alert socket pair.
//
// Worker threads publish their results (under a threadcompat.Mutex, or any
// other synchronization) and call Wake. The loop thread drains the alert
// sockets, then runs the WithOnWake callback, which consumes the results.
package mainloop

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/joeycumines/go-threadcompat"
	"github.com/joeycumines/go-threadcompat/alertsock"
	"github.com/joeycumines/go-threadcompat/internal/goid"
	"github.com/joeycumines/go-threadcompat/internal/logging"
	"github.com/joeycumines/go-threadcompat/internal/poller"
)

var (
	// ErrAlreadyRunning is returned by Run if the loop was already started.
	ErrAlreadyRunning = errors.New("mainloop: loop is already running")

	// ErrTerminated is returned when operating on a terminated loop.
	ErrTerminated = errors.New("mainloop: loop has been terminated")

	// ErrReentrantRun is returned by Run when called from the loop thread.
	ErrReentrantRun = errors.New("mainloop: cannot call Run from within the loop")
)

// IOEvents is a set of readiness conditions, for RegisterFD.
type IOEvents = poller.Events

const (
	EventRead   = poller.EventRead
	EventWrite  = poller.EventWrite
	EventError  = poller.EventError
	EventHangup = poller.EventHangup
)

// Loop owns an alert socket pair and a poller. It must be started with Run,
// and its resources are released when Run returns, or by Shutdown if it was
// never started.
type Loop struct {
	alerts *alertsock.Sockets
	poller *poller.Poller
	opts   *loopOptions
	done   chan struct{}

	// drain is alerts.Drain, replaceable in tests
	drain func() error
	// drainErr is set on the loop thread when the alert sockets break
	drainErr error

	// guards alerts and poller against use after release
	resourceMu sync.RWMutex
	released   bool

	state       fastState
	loopID      atomic.Uint64
	wakePending atomic.Bool
	wakeups     atomic.Uint64
	stopOnce    sync.Once
}

// New creates a loop in StateAwake.
func New(opts ...Option) (*Loop, error) {
	cfg, err := resolveLoopOptions(opts)
	if err != nil {
		return nil, err
	}

	alerts, err := alertsock.New(cfg.alertFlags)
	if err != nil {
		return nil, err
	}

	p, err := poller.New()
	if err != nil {
		_ = alerts.Close()
		return nil, err
	}

	l := &Loop{
		alerts: alerts,
		poller: p,
		opts:   cfg,
		done:   make(chan struct{}),
	}
	l.drain = alerts.Drain

	if err := p.Register(alerts.ReadFD(), poller.EventRead, l.wrap(l.handleAlert)); err != nil {
		_ = p.Close()
		_ = alerts.Close()
		return nil, err
	}

	logging.Debug(logging.CategoryMainLoop).
		Stringer("backend", alerts.Backend()).
		Int("read_fd", alerts.ReadFD()).
		Log("created loop")

	return l, nil
}

// State returns the current state.
func (l *Loop) State() State {
	return l.state.load()
}

// Backend reports the alert socket backend in use.
func (l *Loop) Backend() alertsock.Backend {
	return l.alerts.Backend()
}

// Wakeups returns the number of drained wakeups so far.
func (l *Loop) Wakeups() uint64 {
	return l.wakeups.Load()
}

// InLoopThread reports whether the caller is the thread running l.
func (l *Loop) InLoopThread() bool {
	id := l.loopID.Load()
	return id != 0 && id == goid.Get()
}

// Run runs the loop on the calling thread, which stays locked to its OS
// thread, until Shutdown is called or ctx is done. It returns ctx.Err() in
// the latter case.
func (l *Loop) Run(ctx context.Context) error {
	if l.InLoopThread() {
		return ErrReentrantRun
	}

	if l.opts.mainThread {
		if err := threadcompat.SetMainThread(); err != nil {
			return err
		}
	}

	if !l.state.tryTransition(StateAwake, StateRunning) {
		if s := l.state.load(); s == StateTerminating || s == StateTerminated {
			return ErrTerminated
		}
		return ErrAlreadyRunning
	}

	defer close(l.done)

	return l.run(ctx)
}

func (l *Loop) run(ctx context.Context) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.loopID.Store(goid.Get())
	defer l.loopID.Store(0)

	defer l.release()

	ctxDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = l.alert()
		case <-ctxDone:
		}
	}()
	defer close(ctxDone)

	logging.Debug(logging.CategoryMainLoop).
		Uint64("thread", uint64(threadcompat.CurrentThreadID())).
		Log("loop running")

	for {
		if err := ctx.Err(); err != nil {
			l.state.terminate()
			return err
		}

		if !l.state.tryTransition(StateRunning, StateSleeping) {
			// Shutdown
			return nil
		}

		_, err := l.poller.Poll(l.opts.pollTimeout)
		if err == nil && l.drainErr != nil {
			err = l.drainErr
		}
		if err != nil {
			logging.L().Err().
				Str("category", logging.CategoryMainLoop).
				Err(err).
				Log("loop failed, terminating")
			l.state.terminate()
			return err
		}

		l.state.tryTransition(StateSleeping, StateRunning)
	}
}

// wrap marks the loop as running for the duration of a poll callback.
func (l *Loop) wrap(cb poller.Callback) poller.Callback {
	return func(events poller.Events) {
		l.state.tryTransition(StateSleeping, StateRunning)
		cb(events)
	}
}

func (l *Loop) handleAlert(events poller.Events) {
	if events&(poller.EventError|poller.EventHangup) != 0 {
		logging.Warning(logging.CategoryMainLoop).
			Uint64("events", uint64(events)).
			Log("unexpected alert socket condition")
	}

	if err := l.drain(); err != nil {
		// a drain only fails if the pair is broken (e.g. EOF), which would
		// otherwise leave the fd readable forever and strand Wake callers
		// behind wakePending
		l.wakePending.Store(false)
		l.drainErr = fmt.Errorf("mainloop: alert sockets unusable: %w", err)
		l.state.terminate()
		return
	}

	// any Wake after this point writes a fresh alert
	l.wakePending.Store(false)
	l.wakeups.Add(1)

	if l.state.load() == StateTerminating {
		return
	}

	if l.opts.onWake != nil {
		l.opts.onWake()
	}
}

// Wake wakes the loop, from any thread. Calls are coalesced until the loop
// drains the alert. Waking a loop that has not started yet is allowed, Run
// will observe it.
func (l *Loop) Wake() error {
	if l.state.load() == StateTerminated {
		return ErrTerminated
	}
	if !l.wakePending.CompareAndSwap(false, true) {
		return nil
	}
	if err := l.alert(); err != nil {
		l.wakePending.Store(false)
		return err
	}
	return nil
}

// alert writes to the alert sockets, if they have not been released.
func (l *Loop) alert() error {
	l.resourceMu.RLock()
	defer l.resourceMu.RUnlock()
	if l.released {
		return ErrTerminated
	}
	return l.alerts.Alert()
}

// RegisterFD monitors a further descriptor, running cb on the loop thread
// when it is ready. The descriptor must be unregistered before it is
// closed.
func (l *Loop) RegisterFD(fd int, events IOEvents, cb func(IOEvents)) error {
	if l.state.load() == StateTerminated {
		return ErrTerminated
	}
	return l.poller.Register(fd, events, l.wrap(cb))
}

// UnregisterFD stops monitoring a descriptor added with RegisterFD.
func (l *Loop) UnregisterFD(fd int) error {
	if fd == l.alerts.ReadFD() {
		return poller.ErrFDNotRegistered
	}
	return l.poller.Unregister(fd)
}

// Shutdown stops the loop, waiting until Run returns or ctx is done. A loop
// that was never started is terminated immediately. Only the first call has
// any effect, later calls return ErrTerminated.
func (l *Loop) Shutdown(ctx context.Context) error {
	err := ErrTerminated
	l.stopOnce.Do(func() {
		err = l.shutdown(ctx)
	})
	return err
}

func (l *Loop) shutdown(ctx context.Context) error {
	from, ok := l.state.terminate()
	if !ok {
		return ErrTerminated
	}

	if from == StateAwake {
		l.release()
		return nil
	}

	if err := l.alert(); err != nil && !errors.Is(err, ErrTerminated) {
		logging.Warning(logging.CategoryMainLoop).
			Err(err).
			Log("failed to wake loop for shutdown")
	}

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release closes the poller and the alert sockets, then marks the loop
// terminated.
func (l *Loop) release() {
	l.resourceMu.Lock()
	defer l.resourceMu.Unlock()
	if l.released {
		return
	}
	l.released = true

	if err := l.poller.Close(); err != nil {
		logging.Warning(logging.CategoryMainLoop).Err(err).Log("poller close failed")
	}
	if err := l.alerts.Close(); err != nil {
		logging.Warning(logging.CategoryMainLoop).Err(err).Log("alert sockets close failed")
	}

	l.state.store(StateTerminated)

	logging.Debug(logging.CategoryMainLoop).Log("loop terminated")
}
