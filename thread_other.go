//go:build !linux

package threadcompat

// OSThreadID returns -1, as no portable kernel thread ID is available on
// this platform. Use CurrentThreadID instead.
func OSThreadID() int {
	return -1
}
