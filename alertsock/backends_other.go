//go:build !unix

package alertsock

// No backend is implemented for this platform, so New always fails with
// ErrNoBackend.
var strategies = [...]strategy{
	{backend: BackendEventfd2, disable: NoEventfd2, create: unsupported},
	{backend: BackendEventfd, disable: NoEventfd, create: unsupported},
	{backend: BackendPipe2, disable: NoPipe2, create: unsupported},
	{backend: BackendPipe, disable: NoPipe, create: unsupported},
	{backend: BackendSocketpair, disable: NoSocketpair, create: unsupported},
}

func unsupported() (int, int, error) {
	return -1, -1, ErrUnsupported
}

func closeFD(int) error {
	return ErrUnsupported
}
