// Package timer drives the loadable hardware timers of the two supported
// peripheral families. A started timer is the usual tick source behind
// timebase: it is set up free-running (reload enabled, full-range load value)
// and left counting for the life of the process.
package timer

import (
	"errors"

	"github.com/kestrel-embedded/softhal/timebase"
)

// ErrInvalidCountParams is returned by Setup for a count configuration the
// backend cannot realize.
var ErrInvalidCountParams = errors.New("timer: unsupported count parameters")

// CountMethod selects the counting direction.
type CountMethod uint8

const (
	CountUp CountMethod = iota
	CountDown
)

// Reload selects whether the counter reloads and keeps running on expiry.
type Reload uint8

const (
	ReloadEnable Reload = iota
	ReloadDisable
)

// CountParams configures a timer's counting behavior.
type CountParams struct {
	Method    CountMethod
	Reload    Reload
	LoadValue uint32
}

// DefaultCountParams returns a free-running full-range count-down
// configuration, the shape a timebase tick source wants.
func DefaultCountParams() CountParams {
	return CountParams{Method: CountDown, Reload: ReloadEnable, LoadValue: 0xFFFFFFFF}
}

// Device is the timer driver interface implemented by both backends.
// ReadCounter and Frequency make a started Device a timebase.Source.
type Device interface {
	Setup(p CountParams) error
	Start()
	Stop()
	ReadCounter() uint32
	Frequency() uint32

	// SetupInterrupt installs cb to run, in interrupt context, each time the
	// counter expires. The expiry interrupt stays disabled until
	// EnableInterrupt.
	SetupInterrupt(cb func()) error
	EnableInterrupt()
	DisableInterrupt()

	Close() error
}

// A started Device is a valid tick source.
var _ timebase.Source = (Device)(nil)
