// Package sim provides hosted stand-ins for the hardware this HAL is written
// against: an interrupt controller, a free-running counter, and
// register-accurate models of the two UART peripheral families. They exist so
// the interrupt-driven drivers can be exercised under go test with the same
// code paths they run on a target.
package sim

import (
	"sync"
	"sync/atomic"

	"github.com/kestrel-embedded/softhal/hw"
)

// Intc is a simulated interrupt controller.
//
// Masking stand-in: on hardware, disabling a port's interrupt line guarantees
// the port's ISR cannot preempt the foreground. Here each line owns a mutex;
// delivery runs the handler while holding it, and Disable acquires it before
// setting the mask flag. A foreground Disable therefore blocks until any
// in-flight handler finishes, and a Raise against a masked line is recorded
// as pending and replayed by Enable — the hosted equivalent of a level
// interrupt held off by the mask.
type Intc struct {
	mu    sync.Mutex
	lines map[uint32]*simLine
}

type simLine struct {
	mu      sync.Mutex
	handler hw.Handler
	masked  bool
	pending atomic.Bool

	delivered atomic.Uint64
	deferred  atomic.Uint64
}

// NewIntc returns an interrupt controller with no lines registered.
func NewIntc() *Intc {
	return &Intc{lines: make(map[uint32]*simLine)}
}

func (c *Intc) line(n uint32) *simLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.lines[n]
	if !ok {
		l = &simLine{masked: true}
		c.lines[n] = l
	}
	return l
}

// Register installs h as the handler for line n, replacing any previous one.
// A nil handler detaches the line.
func (c *Intc) Register(n uint32, h hw.Handler) {
	l := c.line(n)
	l.mu.Lock()
	l.handler = h
	l.mu.Unlock()
}

// Disable masks line n. Idempotent. Blocks until a handler already running on
// the line has returned, which is what makes Disable/Enable pairs a critical
// section against the line's ISR.
func (c *Intc) Disable(n uint32) {
	l := c.line(n)
	l.mu.Lock()
	l.masked = true
	l.mu.Unlock()
}

// Enable unmasks line n and delivers one deferred interrupt if the line went
// pending while masked. Idempotent.
func (c *Intc) Enable(n uint32) {
	l := c.line(n)
	l.mu.Lock()
	l.masked = false
	l.run()
	l.mu.Unlock()
}

// Raise asserts line n from device context. If the line is masked or its
// handler is currently executing, the interrupt is left pending for later
// delivery; handlers re-raised by their own register writes are replayed
// after they return instead of nesting.
func (c *Intc) Raise(n uint32) {
	l := c.line(n)
	if !l.mu.TryLock() {
		// Masked transition in progress or handler mid-flight.
		l.pending.Store(true)
		l.deferred.Add(1)
		return
	}
	if l.masked {
		l.pending.Store(true)
		l.deferred.Add(1)
		l.mu.Unlock()
		return
	}
	l.pending.Store(true)
	l.run()
	l.mu.Unlock()
}

// run delivers pending interrupts until the line is quiet. Caller holds l.mu.
func (l *simLine) run() {
	for !l.masked && l.handler != nil && l.pending.Swap(false) {
		l.delivered.Add(1)
		l.handler()
	}
}

// Stats reports delivered and deferred interrupt counts for line n.
func (c *Intc) Stats(n uint32) (delivered, deferred uint64) {
	l := c.line(n)
	return l.delivered.Load(), l.deferred.Load()
}
