// Package timebase turns a free-running 32-bit hardware counter into a safe
// time source for driver timeouts, bounded waits and duration measurement.
//
// All arithmetic is done on raw 32-bit counter values with unsigned modular
// subtraction, so the counter wrapping through zero is handled transparently
// in either count direction. Durations below converge on three granularities:
// milliseconds, microseconds, and a 1024-nanosecond fixed-point unit that
// avoids 64-bit multiplication when converting nanoseconds on 32-bit targets.
//
// The process-wide instance is installed once with Init, before interrupts
// are enabled, and read with Instance. Drivers can equally hold a *Timebase
// directly, which is what the tests do.
package timebase

import "math"

// Direction tells which way the hardware counter runs. It is fixed per
// platform.
type Direction uint8

const (
	CountUp Direction = iota
	CountDown
)

// Source is the raw tick accessor a Timebase is built on. A started timer
// device satisfies it.
type Source interface {
	// ReadCounter returns the current raw counter value.
	ReadCounter() uint32
	// Frequency returns the counter's tick rate in Hz.
	Frequency() uint32
}

// Timebase converts between wall-clock durations and counter deltas.
type Timebase struct {
	src Source
	dir Direction

	// Ticks per duration unit, rounded up: used converting durations to
	// counter deltas so a requested wait is never shorter than asked.
	countsPer1024Nsec uint32
	countsPerUsec     uint32
	countsPerMsec     uint32

	// Ticks per duration unit, rounded down: used converting counter deltas
	// back to durations so a measured duration is never reported longer than
	// it was.
	unit1024Nsec uint32
	unitUsec     uint32
	unitMsec     uint32
}

// New builds a Timebase over src with the given count direction.
//
// The source frequency must be at least 1 MHz; below that the microsecond
// measurement unit degenerates to zero. Violating this is a contract error.
func New(src Source, dir Direction) *Timebase {
	freq := src.Frequency()
	if freq < 1000000 {
		panic("timebase: source frequency below 1 MHz")
	}
	return &Timebase{
		src:               src,
		dir:               dir,
		countsPer1024Nsec: (freq + (976562 - 1)) / 976562,
		countsPerUsec:     (freq + (1000000 - 1)) / 1000000,
		countsPerMsec:     (freq + (1000 - 1)) / 1000,
		unit1024Nsec:      freq / 976562,
		unitUsec:          freq / 1000000,
		unitMsec:          freq / 1000,
	}
}

var instance *Timebase

// Init installs the process-wide Timebase. It must be called exactly once,
// before any interrupt that might consult Instance is enabled.
func Init(src Source, dir Direction) {
	if instance != nil {
		panic("timebase: Init called twice")
	}
	instance = New(src, dir)
}

// Instance returns the Timebase installed by Init.
func Instance() *Timebase {
	if instance == nil {
		panic("timebase: Init not called")
	}
	return instance
}

// diff returns end-start in counter ticks, honoring the count direction.
// Computed in unsigned 32-bit arithmetic so counter wraparound cancels out.
func (t *Timebase) diff(start, end uint32) uint32 {
	if t.dir == CountUp {
		return end - start
	}
	return start - end
}

// Now returns the current raw counter value.
func (t *Timebase) Now() uint32 {
	return t.src.ReadCounter()
}

// ConvertNsecToCount converts nanoseconds to a counter delta, rounding up.
// nsec must be small enough that the ×1024 fixed-point multiply fits in 32
// bits; larger values are a contract error.
func (t *Timebase) ConvertNsecToCount(nsec uint32) uint32 {
	if nsec >= (math.MaxUint32-(1024-1))/t.countsPer1024Nsec {
		panic("timebase: nanosecond conversion overflows")
	}
	return ((t.countsPer1024Nsec * nsec) + (1024 - 1)) >> 10
}

// ConvertUsecToCount converts microseconds to a counter delta.
// usec must satisfy usec < 2^32 / ticksPerUsec; larger values are a contract
// error.
func (t *Timebase) ConvertUsecToCount(usec uint32) uint32 {
	if usec >= math.MaxUint32/t.countsPerUsec {
		panic("timebase: microsecond conversion overflows")
	}
	return t.countsPerUsec * usec
}

// ConvertMsecToCount converts milliseconds to a counter delta.
// msec must satisfy msec < 2^32 / ticksPerMsec; larger values are a contract
// error.
func (t *Timebase) ConvertMsecToCount(msec uint32) uint32 {
	if msec >= math.MaxUint32/t.countsPerMsec {
		panic("timebase: millisecond conversion overflows")
	}
	return t.countsPerMsec * msec
}

// Timeout reports whether at least timeoutCount ticks have elapsed since
// baseCount was captured.
func (t *Timebase) Timeout(baseCount, timeoutCount uint32) bool {
	return t.diff(baseCount, t.src.ReadCounter()) >= timeoutCount
}

// WaitNsec busy-loops for at least nsec nanoseconds.
func (t *Timebase) WaitNsec(nsec uint32) {
	base := t.src.ReadCounter()
	deadline := t.ConvertNsecToCount(nsec)
	for t.diff(base, t.src.ReadCounter()) < deadline {
	}
}

// WaitUsec busy-loops for at least usec microseconds.
func (t *Timebase) WaitUsec(usec uint32) {
	base := t.src.ReadCounter()
	deadline := t.ConvertUsecToCount(usec)
	for t.diff(base, t.src.ReadCounter()) < deadline {
	}
}

// WaitMsec busy-loops for at least msec milliseconds.
func (t *Timebase) WaitMsec(msec uint32) {
	base := t.src.ReadCounter()
	deadline := t.ConvertMsecToCount(msec)
	for t.diff(base, t.src.ReadCounter()) < deadline {
	}
}

// MeasureDurationNsec returns the elapsed nanoseconds between two counter
// values, rounding up.
//
// The conversion runs in ×1024 fixed point. When the tick delta has any of
// its top ten bits set, shifting it left by 10 would overflow, so the divide
// happens first and the quotient is scaled up; otherwise the delta is scaled
// first, preserving resolution for short intervals.
func (t *Timebase) MeasureDurationNsec(startCount, endCount uint32) uint32 {
	d := t.diff(startCount, endCount)
	if d&0xFFC00000 != 0 {
		return ((d + (t.unit1024Nsec - 1)) / t.unit1024Nsec) << 10
	}
	return ((d << 10) + (t.unit1024Nsec - 1)) / t.unit1024Nsec
}

// MeasureDurationUsec returns the elapsed microseconds between two counter
// values, rounding up.
func (t *Timebase) MeasureDurationUsec(startCount, endCount uint32) uint32 {
	d := t.diff(startCount, endCount)
	return (d + (t.unitUsec - 1)) / t.unitUsec
}

// MeasureDurationMsec returns the elapsed milliseconds between two counter
// values, rounding up.
func (t *Timebase) MeasureDurationMsec(startCount, endCount uint32) uint32 {
	d := t.diff(startCount, endCount)
	return (d + (t.unitMsec - 1)) / t.unitMsec
}
