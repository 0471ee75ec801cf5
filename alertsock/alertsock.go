// Package alertsock provides alert sockets: a pair of descriptors that let
// any thread make a readiness based event loop (epoll, kqueue, poll, ...)
// return, without sharing a lock with it.
//
// The event loop watches ReadFD for readability. Other threads call Alert,
// and the loop calls Drain once woken. Alerts arriving before the next Drain
// may coalesce into a single readiness event, so consumers must re-check
// their actual work state rather than count alerts.
//
// New picks the first working backend, in order: eventfd2, eventfd, pipe2,
// pipe, socketpair. Individual backends may be disabled with Flags.
package alertsock

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/joeycumines/go-threadcompat/internal/logging"
)

// Flags disable alert socket backends.
type Flags uint32

const (
	// NoEventfd2 disables the eventfd backend created with flags atomically.
	NoEventfd2 Flags = 1 << iota
	// NoEventfd disables the eventfd backend with flags set after creation.
	NoEventfd
	// NoPipe2 disables the pipe backend created with flags atomically.
	NoPipe2
	// NoPipe disables the pipe backend with flags set after creation.
	NoPipe
	// NoSocketpair disables the socketpair backend.
	NoSocketpair
)

func (f Flags) String() string {
	if f == 0 {
		return "0"
	}
	var parts []string
	for _, b := range strategies {
		if f&b.disable != 0 {
			parts = append(parts, "no-"+b.backend.String())
		}
	}
	return strings.Join(parts, "|")
}

// Backend identifies the mechanism behind a Sockets pair.
type Backend int

const (
	BackendEventfd2 Backend = iota + 1
	BackendEventfd
	BackendPipe2
	BackendPipe
	BackendSocketpair
)

func (b Backend) String() string {
	switch b {
	case BackendEventfd2:
		return "eventfd2"
	case BackendEventfd:
		return "eventfd"
	case BackendPipe2:
		return "pipe2"
	case BackendPipe:
		return "pipe"
	case BackendSocketpair:
		return "socketpair"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

var (
	// ErrNoBackend is returned by New when every backend was disabled or
	// failed. The individual failures are joined to it.
	ErrNoBackend = errors.New("alertsock: no usable backend")

	// ErrUnsupported is the failure of a backend the platform lacks.
	ErrUnsupported = errors.New("alertsock: backend not supported on this platform")

	// ErrDisabled is the failure of a backend disabled by Flags.
	ErrDisabled = errors.New("alertsock: backend disabled")

	// ErrClosed is returned by operations on closed sockets.
	ErrClosed = errors.New("alertsock: closed")

	// ErrUnexpectedEOF is returned by Drain if the write side went away.
	ErrUnexpectedEOF = errors.New("alertsock: unexpected EOF on read side")
)

// strategy is one entry in the backend cascade.
type strategy struct {
	create  func() (readFD, writeFD int, err error)
	alert   func(writeFD int) error
	drain   func(readFD int) error
	backend Backend
	disable Flags
}

// Sockets is an alert socket pair. ReadFD and WriteFD may be the same
// descriptor (eventfd).
type Sockets struct {
	strategy *strategy
	readFD   int
	writeFD  int
	closed   atomic.Bool
}

// New creates an alert socket pair, using the first backend not disabled by
// flags that succeeds.
func New(flags Flags) (*Sockets, error) {
	var errs []error
	for i := range strategies {
		s := &strategies[i]
		if flags&s.disable != 0 {
			errs = append(errs, fmt.Errorf("%s: %w", s.backend, ErrDisabled))
			continue
		}
		r, w, err := s.create()
		if err != nil {
			if !errors.Is(err, ErrUnsupported) {
				logging.Debug(logging.CategoryAlertSock).
					Stringer("backend", s.backend).
					Err(err).
					Log("alert socket backend failed, trying next")
			}
			errs = append(errs, fmt.Errorf("%s: %w", s.backend, err))
			continue
		}
		logging.Debug(logging.CategoryAlertSock).
			Stringer("backend", s.backend).
			Int("read_fd", r).
			Int("write_fd", w).
			Log("alert sockets created")
		return &Sockets{strategy: s, readFD: r, writeFD: w}, nil
	}
	return nil, errors.Join(append([]error{ErrNoBackend}, errs...)...)
}

// ReadFD is the descriptor to watch for readability.
func (x *Sockets) ReadFD() int { return x.readFD }

// WriteFD is the descriptor written by Alert.
func (x *Sockets) WriteFD() int { return x.writeFD }

// Backend reports the backend in use.
func (x *Sockets) Backend() Backend { return x.strategy.backend }

// Alert makes ReadFD readable. It never blocks, and is safe to call from any
// number of threads at once. An alert that finds the backend already full
// (i.e. already alerted) succeeds.
func (x *Sockets) Alert() error {
	if x.closed.Load() {
		return ErrClosed
	}
	if err := x.strategy.alert(x.writeFD); err != nil {
		logging.Warning(logging.CategoryAlertSock).
			Stringer("backend", x.strategy.backend).
			Int("write_fd", x.writeFD).
			Err(err).
			Log("alert failed")
		return err
	}
	return nil
}

// Drain consumes all pending alerts, so ReadFD is no longer readable until
// the next Alert. It never blocks, and is a no-op if nothing is pending.
// Only the thread owning the event loop should call it.
func (x *Sockets) Drain() error {
	if x.closed.Load() {
		return ErrClosed
	}
	return x.strategy.drain(x.readFD)
}

// Close closes both descriptors. Only the first call has any effect, later
// calls return ErrClosed.
func (x *Sockets) Close() error {
	if !x.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	err := closeFD(x.readFD)
	if x.writeFD != x.readFD {
		err = errors.Join(err, closeFD(x.writeFD))
	}
	return err
}
