package threadcompat

import (
	"fmt"
)

// options holds configuration for ThreadsInit and the constructors.
type options struct {
	caps          Capability
	capsSet       bool
	maxThreads    int
	maxThreadsSet bool
}

// Option configures ThreadsInit, NewCond, Cond.Init, NewAtomicCounter, or
// AtomicCounter.Init. Options that do not apply to a given call are ignored.
type Option interface {
	apply(*options) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyFunc func(*options) error
}

func (o *optionImpl) apply(opts *options) error {
	return o.applyFunc(opts)
}

// WithCapabilities restricts the capabilities used to select backends. The
// value is intersected with ProbeCapabilities, so it can only disable
// primitives, e.g. WithCapabilities(0) forces every emulated backend.
//
// Passed to ThreadsInit, it changes the process-wide default.
func WithCapabilities(caps Capability) Option {
	return &optionImpl{func(opts *options) error {
		opts.caps = caps & ProbeCapabilities()
		opts.capsSet = true
		return nil
	}}
}

// WithMaxThreads limits the number of concurrently running threads started
// by Spawn. Zero means unlimited. Only meaningful for ThreadsInit.
func WithMaxThreads(n int) Option {
	return &optionImpl{func(opts *options) error {
		if n < 0 {
			return fmt.Errorf("threadcompat: invalid max threads: %d", n)
		}
		opts.maxThreads = n
		opts.maxThreadsSet = true
		return nil
	}}
}

// resolveOptions applies Option instances, over the process defaults.
func resolveOptions(opts []Option) (*options, error) {
	cfg := &options{
		caps: Capabilities(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
