//go:build unix && !linux && !freebsd && !netbsd && !openbsd && !dragonfly && !solaris

package alertsock

// No pipe2 here (e.g. darwin), leaving pipe and socketpair.
func createPipe2() (int, int, error) {
	return -1, -1, ErrUnsupported
}
