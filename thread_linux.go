//go:build linux

package threadcompat

import (
	"golang.org/x/sys/unix"
)

// OSThreadID returns the kernel thread ID of the OS thread currently running
// the caller. Unless the caller is locked to its OS thread (as threads from
// Spawn are), the value may change between calls.
func OSThreadID() int {
	return unix.Gettid()
}
