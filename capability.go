package threadcompat

import (
	"strings"
	"sync/atomic"
)

// Capability is a bitmask of low-level primitives available to this
// process. Components select their backend from it at construction time.
type Capability uint32

const (
	// CapNativeCond indicates a native condition variable is available. When
	// absent, Cond uses the generation-counter emulation.
	CapNativeCond Capability = 1 << iota

	// CapNativeAtomics indicates native atomic instructions are available.
	// When absent, AtomicCounter guards its value with a Mutex.
	CapNativeAtomics

	capAll = CapNativeCond | CapNativeAtomics
)

// Has reports whether all bits of other are set.
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

func (c Capability) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	if c.Has(CapNativeCond) {
		parts = append(parts, "native-cond")
	}
	if c.Has(CapNativeAtomics) {
		parts = append(parts, "native-atomics")
	}
	if c&^capAll != 0 {
		parts = append(parts, "unknown")
	}
	return strings.Join(parts, "|")
}

// ProbeCapabilities reports the primitives the runtime provides. The Go
// runtime supplies atomics and channel based parking on every supported
// platform, so this is currently everything; the emulated backends are
// reachable by masking capabilities out, see WithCapabilities.
func ProbeCapabilities() Capability {
	return capAll
}

var processCaps atomic.Uint32

func init() {
	processCaps.Store(uint32(ProbeCapabilities()))
}

// Capabilities returns the process-wide capability set, used as the default
// by constructors. It is the probed set, unless ThreadsInit was called with
// WithCapabilities.
func Capabilities() Capability {
	return Capability(processCaps.Load())
}
