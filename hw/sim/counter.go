package sim

import "sync/atomic"

// Counter models a 32-bit free-running tick counter. Every read advances the
// value by a fixed step, so busy-wait loops in the drivers make deterministic
// progress without real time passing. It satisfies timebase.Source.
type Counter struct {
	value atomic.Uint32
	freq  uint32
	step  uint32
	down  bool
}

// NewCounter returns an auto-stepping counter. freq is the modeled tick rate
// in Hz; step is the number of ticks that elapse per read; down selects a
// count-down counter.
func NewCounter(freq, step uint32, down bool) *Counter {
	c := &Counter{freq: freq, step: step, down: down}
	if down {
		c.value.Store(0xFFFFFFFF)
	}
	return c
}

// ReadCounter returns the current value and advances the counter.
func (c *Counter) ReadCounter() uint32 {
	for {
		v := c.value.Load()
		next := v + c.step
		if c.down {
			next = v - c.step
		}
		if c.value.CompareAndSwap(v, next) {
			return v
		}
	}
}

// Frequency returns the modeled tick rate in Hz.
func (c *Counter) Frequency() uint32 { return c.freq }

// Set forces the counter value; used to seed wraparound scenarios.
func (c *Counter) Set(v uint32) { c.value.Store(v) }
