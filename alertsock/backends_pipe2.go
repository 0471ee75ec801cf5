//go:build linux || freebsd || netbsd || openbsd || dragonfly || solaris

package alertsock

import (
	"golang.org/x/sys/unix"
)

func createPipe2() (int, int, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return -1, -1, err
	}
	return fds[0], fds[1], nil
}
