//go:build !linux && !darwin

package poller

import (
	"time"
)

// Poller is unavailable on this platform.
type Poller struct {
	registry
}

// New always fails with ErrUnsupported.
func New() (*Poller, error) {
	return nil, ErrUnsupported
}

func (p *Poller) Close() error { return nil }

func (p *Poller) Register(fd int, events Events, cb Callback) error { return ErrUnsupported }

func (p *Poller) Unregister(fd int) error { return ErrUnsupported }

func (p *Poller) Modify(fd int, events Events) error { return ErrUnsupported }

func (p *Poller) Poll(timeout time.Duration) (int, error) { return 0, ErrUnsupported }
