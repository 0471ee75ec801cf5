//go:build linux

package alertsock

import (
	"golang.org/x/sys/unix"
)

func createEventfd2() (int, int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, -1, err
	}
	return fd, fd, nil
}

func createEventfd() (int, int, error) {
	fd, err := unix.Eventfd(0, 0)
	if err != nil {
		return -1, -1, err
	}
	if err := setNonblockCloexec(fd); err != nil {
		closeAll(fd)
		return -1, -1, err
	}
	return fd, fd, nil
}
