//go:build unix && !linux

package alertsock

func createEventfd2() (int, int, error) {
	return -1, -1, ErrUnsupported
}

func createEventfd() (int, int, error) {
	return -1, -1, ErrUnsupported
}
