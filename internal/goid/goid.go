// Package goid reports the identifier of the calling goroutine.
package goid

import (
	"runtime"
)

const prefix = "goroutine "

// Get returns the current goroutine's ID, parsed from the runtime stack
// header. Goroutine IDs are never reused within a process, and are never 0.
func Get() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len(prefix); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
