package threadcompat

import (
	"time"

	"github.com/joeycumines/go-threadcompat/internal/logging"
	"github.com/joeycumines/logiface"
)

// SetLogger sets the structured logger used by this module (including the
// alertsock and mainloop packages). A nil logger, the default, disables
// logging. Use Logger to obtain the generified form from a typed logger:
//
//	threadcompat.SetLogger(stumpy.L.New(stumpy.L.WithStumpy()).Logger())
func SetLogger(logger *logiface.Logger[logiface.Event]) {
	logging.Set(logger)
}

// SetLogRateLimits replaces the rates used to throttle repeated warnings
// (e.g. failing alerts), which are applied per category. A nil map disables
// throttling.
func SetLogRateLimits(rates map[time.Duration]int) {
	logging.SetRates(rates)
}
