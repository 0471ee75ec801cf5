// Package logging holds the process-wide structured logger shared by the
// threadcompat packages.
//
// The logger is a generified logiface logger, so any logiface backend
// (stumpy, zerolog, slog, ...) may be plugged in. A nil logger disables all
// output; logiface builders are nil-safe, so call sites never need to check.
package logging

import (
	"sync"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Categories, used both as a log field and as the rate limiting key.
const (
	CategoryThread    = "thread"
	CategoryAlertSock = "alertsock"
	CategoryMainLoop  = "mainloop"
)

var global struct {
	sync.RWMutex
	logger  *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter
}

// DefaultRates are the rates used to throttle repeated warnings, per
// category.
var DefaultRates = map[time.Duration]int{
	time.Second: 5,
	time.Minute: 30,
}

func init() {
	global.limiter = catrate.NewLimiter(DefaultRates)
}

// Set replaces the process-wide logger. A nil value disables logging.
func Set(logger *logiface.Logger[logiface.Event]) {
	global.Lock()
	defer global.Unlock()
	global.logger = logger
}

// SetRates replaces the throttling rates. A nil or empty map disables
// throttling.
func SetRates(rates map[time.Duration]int) {
	var limiter *catrate.Limiter
	if len(rates) != 0 {
		limiter = catrate.NewLimiter(rates)
	}
	global.Lock()
	defer global.Unlock()
	global.limiter = limiter
}

// L returns the current logger, which may be nil.
func L() *logiface.Logger[logiface.Event] {
	global.RLock()
	defer global.RUnlock()
	return global.logger
}

// Allow reports whether a throttled message for the given key may be
// logged now. The key is normally a category, optionally suffixed to
// narrow it (e.g. per backend).
func Allow(key string) bool {
	global.RLock()
	limiter := global.limiter
	global.RUnlock()
	if limiter == nil {
		return true
	}
	_, ok := limiter.Allow(key)
	return ok
}

// Warning returns a warning builder for the category, or nil if the
// category is currently throttled (or logging is disabled).
func Warning(category string) *logiface.Builder[logiface.Event] {
	logger := L()
	if logger == nil {
		return nil
	}
	b := logger.Warning()
	if !b.Enabled() {
		return nil
	}
	if !Allow(category) {
		b.Release()
		return nil
	}
	return b.Str("category", category)
}

// Debug returns a debug builder tagged with the category.
func Debug(category string) *logiface.Builder[logiface.Event] {
	return L().Debug().Str("category", category)
}

// Info returns an info builder tagged with the category.
func Info(category string) *logiface.Builder[logiface.Event] {
	return L().Info().Str("category", category)
}
