//go:build linux

package poller

import (
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"
)

// Poller is an epoll instance.
type Poller struct {
	registry
	buf    [128]unix.EpollEvent
	epfd   int
	closed atomic.Bool
}

// New creates a Poller. It must be closed with Close.
func New() (*Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Poller{epfd: epfd}, nil
}

// Close releases the epoll instance. Later calls are no-ops.
func (p *Poller) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return unix.Close(p.epfd)
}

// Register starts monitoring fd, invoking cb from Poll.
func (p *Poller) Register(fd int, events Events, cb Callback) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := p.add(fd, events, cb); err != nil {
		return err
	}
	ev := unix.EpollEvent{Events: toEpoll(events), Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		_, _ = p.remove(fd)
		return err
	}
	return nil
}

// Unregister stops monitoring fd.
func (p *Poller) Unregister(fd int) error {
	if _, err := p.remove(fd); err != nil {
		return err
	}
	if p.closed.Load() {
		return nil
	}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Modify changes the events monitored for fd.
func (p *Poller) Modify(fd int, events Events) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if _, err := p.modify(fd, events); err != nil {
		return err
	}
	ev := unix.EpollEvent{Events: toEpoll(events), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

// Poll waits up to timeout (negative meaning forever) for readiness, then
// invokes the callbacks of the ready descriptors, returning how many were
// ready. An interrupted wait reports 0 events and no error.
func (p *Poller) Poll(timeout time.Duration) (int, error) {
	if p.closed.Load() {
		return 0, ErrClosed
	}
	n, err := unix.EpollWait(p.epfd, p.buf[:], timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, err
	}
	for i := range n {
		if cb, ok := p.lookup(int(p.buf[i].Fd)); ok {
			cb(fromEpoll(p.buf[i].Events))
		}
	}
	return n, nil
}

func toEpoll(events Events) uint32 {
	var v uint32
	if events&EventRead != 0 {
		v |= unix.EPOLLIN
	}
	if events&EventWrite != 0 {
		v |= unix.EPOLLOUT
	}
	return v
}

func fromEpoll(v uint32) Events {
	var events Events
	if v&unix.EPOLLIN != 0 {
		events |= EventRead
	}
	if v&unix.EPOLLOUT != 0 {
		events |= EventWrite
	}
	if v&unix.EPOLLERR != 0 {
		events |= EventError
	}
	if v&unix.EPOLLHUP != 0 {
		events |= EventHangup
	}
	return events
}
