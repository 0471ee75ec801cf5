// Package poller wraps the platform readiness notification facility (epoll
// on linux, kqueue on darwin) behind a callback based API, for use by a
// single polling thread.
package poller

import (
	"errors"
	"sync"
	"time"
)

// Events is a set of readiness conditions.
type Events uint32

const (
	// EventRead indicates the descriptor is readable.
	EventRead Events = 1 << iota
	// EventWrite indicates the descriptor is writable.
	EventWrite
	// EventError indicates an error condition on the descriptor.
	EventError
	// EventHangup indicates the peer closed its end.
	EventHangup
)

// Callback receives the events reported for a descriptor. It runs on the
// polling thread.
type Callback func(Events)

var (
	ErrFDOutOfRange        = errors.New("poller: fd out of range")
	ErrFDAlreadyRegistered = errors.New("poller: fd already registered")
	ErrFDNotRegistered     = errors.New("poller: fd not registered")
	ErrClosed              = errors.New("poller: closed")
	ErrUnsupported         = errors.New("poller: unsupported platform")
)

type registration struct {
	callback Callback
	events   Events
}

// registry maps descriptors to their registration.
//
// Callbacks are copied out under the read lock and invoked without it, so a
// callback may still run once after Unregister returns, if the event was
// already collected. Close a descriptor only from the polling thread, or
// after the poller has stopped.
type registry struct {
	fds map[int]registration
	mu  sync.RWMutex
}

func (r *registry) add(fd int, events Events, cb Callback) error {
	if fd < 0 {
		return ErrFDOutOfRange
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.fds[fd]; ok {
		return ErrFDAlreadyRegistered
	}
	if r.fds == nil {
		r.fds = make(map[int]registration)
	}
	r.fds[fd] = registration{callback: cb, events: events}
	return nil
}

// remove returns the events fd was registered for.
func (r *registry) remove(fd int) (Events, error) {
	if fd < 0 {
		return 0, ErrFDOutOfRange
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.fds[fd]
	if !ok {
		return 0, ErrFDNotRegistered
	}
	delete(r.fds, fd)
	return reg.events, nil
}

// modify returns the previous events.
func (r *registry) modify(fd int, events Events) (Events, error) {
	if fd < 0 {
		return 0, ErrFDOutOfRange
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.fds[fd]
	if !ok {
		return 0, ErrFDNotRegistered
	}
	old := reg.events
	reg.events = events
	r.fds[fd] = reg
	return old, nil
}

func (r *registry) lookup(fd int) (Callback, bool) {
	r.mu.RLock()
	reg, ok := r.fds[fd]
	r.mu.RUnlock()
	if !ok || reg.callback == nil {
		return nil, false
	}
	return reg.callback, true
}

// Len returns the number of registered descriptors.
func (r *registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fds)
}

// timeoutMillis converts a poll timeout, where negative means forever, to
// the milliseconds the system calls take, rounding up so short timeouts
// still block.
func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := d / time.Millisecond
	if d%time.Millisecond != 0 {
		ms++
	}
	const maxMillis = 1<<31 - 1
	if ms > maxMillis {
		return maxMillis
	}
	return int(ms)
}
