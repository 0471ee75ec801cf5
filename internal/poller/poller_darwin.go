//go:build darwin

package poller

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Poller is a kqueue instance.
type Poller struct {
	registry
	buf    [128]unix.Kevent_t
	kq     int
	closed atomic.Bool
}

// New creates a Poller. It must be closed with Close.
func New() (*Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(kq)
	return &Poller{kq: kq}, nil
}

// Close releases the kqueue. Later calls are no-ops.
func (p *Poller) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return unix.Close(p.kq)
}

// Register starts monitoring fd, invoking cb from Poll.
func (p *Poller) Register(fd int, events Events, cb Callback) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := p.add(fd, events, cb); err != nil {
		return err
	}
	if changes := toKevents(fd, events, unix.EV_ADD|unix.EV_ENABLE); len(changes) != 0 {
		if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
			_, _ = p.remove(fd)
			return err
		}
	}
	return nil
}

// Unregister stops monitoring fd.
func (p *Poller) Unregister(fd int) error {
	events, err := p.remove(fd)
	if err != nil {
		return err
	}
	if p.closed.Load() {
		return nil
	}
	if changes := toKevents(fd, events, unix.EV_DELETE); len(changes) != 0 {
		// filters are dropped by the kernel when the fd closes, so a failed
		// delete leaves nothing behind
		_, _ = unix.Kevent(p.kq, changes, nil, nil)
	}
	return nil
}

// Modify changes the events monitored for fd.
func (p *Poller) Modify(fd int, events Events) error {
	if p.closed.Load() {
		return ErrClosed
	}
	old, err := p.modify(fd, events)
	if err != nil {
		return err
	}
	if changes := toKevents(fd, old&^events, unix.EV_DELETE); len(changes) != 0 {
		_, _ = unix.Kevent(p.kq, changes, nil, nil)
	}
	if changes := toKevents(fd, events&^old, unix.EV_ADD|unix.EV_ENABLE); len(changes) != 0 {
		if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
			return err
		}
	}
	return nil
}

// Poll waits up to timeout (negative meaning forever) for readiness, then
// invokes the callbacks of the ready descriptors, returning how many events
// were collected. An interrupted wait reports 0 events and no error.
func (p *Poller) Poll(timeout time.Duration) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(int64(time.Duration(timeoutMillis(timeout)) * time.Millisecond))
		ts = &t
	}
	n, err := unix.Kevent(p.kq, nil, p.buf[:], ts)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := range n {
		if cb, ok := p.lookup(int(p.buf[i].Ident)); ok {
			cb(fromKevent(&p.buf[i]))
		}
	}
	return n, nil
}

func toKevents(fd int, events Events, flags uint16) []unix.Kevent_t {
	var changes []unix.Kevent_t
	if events&EventRead != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if events&EventWrite != 0 {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return changes
}

func fromKevent(kev *unix.Kevent_t) Events {
	var events Events
	switch kev.Filter {
	case unix.EVFILT_READ:
		events |= EventRead
	case unix.EVFILT_WRITE:
		events |= EventWrite
	}
	if kev.Flags&unix.EV_ERROR != 0 {
		events |= EventError
	}
	if kev.Flags&unix.EV_EOF != 0 {
		events |= EventHangup
	}
	return events
}
