//go:build unix

package alertsock

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// strategies is the backend cascade, in priority order.
var strategies = [...]strategy{
	{backend: BackendEventfd2, disable: NoEventfd2, create: createEventfd2, alert: alertEventfd, drain: drainEventfd},
	{backend: BackendEventfd, disable: NoEventfd, create: createEventfd, alert: alertEventfd, drain: drainEventfd},
	{backend: BackendPipe2, disable: NoPipe2, create: createPipe2, alert: alertStream, drain: drainStream},
	{backend: BackendPipe, disable: NoPipe, create: createPipe, alert: alertStream, drain: drainStream},
	{backend: BackendSocketpair, disable: NoSocketpair, create: createSocketpair, alert: alertStream, drain: drainStream},
}

const eventfdSize = 8

func createPipe() (int, int, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return -1, -1, err
	}
	if err := setNonblockCloexec(fds[0], fds[1]); err != nil {
		closeAll(fds[0], fds[1])
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

func createSocketpair() (int, int, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, -1, err
	}
	if err := setNonblockCloexec(fds[0], fds[1]); err != nil {
		closeAll(fds[0], fds[1])
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}

// alertEventfd adds 1 to the eventfd counter. EAGAIN means the counter is
// saturated, which is as alerted as it gets.
func alertEventfd(fd int) error {
	var buf [eventfdSize]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	n, err := writeFD(fd, buf[:])
	if err != nil {
		if isWouldBlock(err) {
			return nil
		}
		return err
	}
	if n != eventfdSize {
		return fmt.Errorf("alertsock: short write to eventfd: %d bytes", n)
	}
	return nil
}

// drainEventfd resets the eventfd counter to zero.
func drainEventfd(fd int) error {
	var buf [eventfdSize]byte
	for {
		_, err := readFD(fd, buf[:])
		if err != nil {
			if isWouldBlock(err) {
				return nil
			}
			return err
		}
	}
}

// alertStream writes a single byte to a pipe or socket. EAGAIN means the
// buffer is full, i.e. the read side is certainly readable.
func alertStream(fd int) error {
	_, err := writeFD(fd, []byte{'x'})
	if err != nil && !isWouldBlock(err) {
		return err
	}
	return nil
}

// drainStream reads until the pipe or socket would block.
func drainStream(fd int) error {
	var buf [32]byte
	for {
		n, err := readFD(fd, buf[:])
		if err != nil {
			if isWouldBlock(err) {
				return nil
			}
			return err
		}
		if n == 0 {
			return ErrUnexpectedEOF
		}
	}
}
