package mainloop

import (
	"fmt"
	"time"

	"github.com/joeycumines/go-threadcompat/alertsock"
)

// loopOptions holds configuration for New.
type loopOptions struct {
	onWake      func()
	pollTimeout time.Duration
	alertFlags  alertsock.Flags
	mainThread  bool
}

// Option configures a Loop.
type Option interface {
	applyLoop(*loopOptions) error
}

// loopOptionImpl implements Option.
type loopOptionImpl struct {
	applyLoopFunc func(*loopOptions) error
}

func (l *loopOptionImpl) applyLoop(opts *loopOptions) error {
	return l.applyLoopFunc(opts)
}

// WithAlertFlags disables alert socket backends, see alertsock.New.
func WithAlertFlags(flags alertsock.Flags) Option {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.alertFlags = flags
		return nil
	}}
}

// WithOnWake sets the callback run on the loop thread after each drained
// wakeup. Every Wake that returned before the callback starts is covered by
// it, though several may be coalesced into one call.
func WithOnWake(fn func()) Option {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.onWake = fn
		return nil
	}}
}

// WithMainThread makes Run mark its thread as the process main thread,
// see threadcompat.SetMainThread.
func WithMainThread(enabled bool) Option {
	return &loopOptionImpl{func(opts *loopOptions) error {
		opts.mainThread = enabled
		return nil
	}}
}

// WithPollTimeout bounds each blocking poll. Negative (the default) blocks
// until a descriptor is ready.
func WithPollTimeout(d time.Duration) Option {
	return &loopOptionImpl{func(opts *loopOptions) error {
		if d == 0 {
			return fmt.Errorf("mainloop: poll timeout must be non-zero")
		}
		opts.pollTimeout = d
		return nil
	}}
}

// resolveLoopOptions applies Option instances to loopOptions.
func resolveLoopOptions(opts []Option) (*loopOptions, error) {
	cfg := &loopOptions{
		pollTimeout: -1,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyLoop(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
