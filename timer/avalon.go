package timer

import (
	"errors"

	"github.com/golang/glog"

	"github.com/kestrel-embedded/softhal/hw"
)

// Avalon-family interval timer register map. The counter is 32 bits wide but
// accessed in 16-bit halves; reads go through a snapshot latch.
const (
	avtOffStatus  = 0x00
	avtOffControl = 0x04
	avtOffPeriodL = 0x08
	avtOffPeriodH = 0x0C
	avtOffSnapL   = 0x10
	avtOffSnapH   = 0x14

	avtStatTimeout = 0x1

	avtCtrlITO   = 0x1
	avtCtrlCont  = 0x2
	avtCtrlStart = 0x4
	avtCtrlStop  = 0x8
)

// Avalon drives an Avalon-family interval timer. The hardware only counts
// down; Setup rejects CountUp.
type Avalon struct {
	bus  hw.Bus
	intc hw.IntrCtrl
	line uint32
	freq uint32

	controlFlags uint32
	callback     func()
}

var _ Device = (*Avalon)(nil)

// NewAvalon constructs the timer and applies DefaultCountParams. intc may be
// nil when the timer's interrupt output is not wired.
func NewAvalon(bus hw.Bus, intc hw.IntrCtrl, line, freq uint32) *Avalon {
	glog.V(1).Infof("timer/avalon: line=%d freq=%dHz", line, freq)
	t := &Avalon{bus: bus, intc: intc, line: line, freq: freq}
	t.Setup(DefaultCountParams()) // cannot fail: default counts down
	return t
}

// Setup programs the reload period. Count-up is not realizable on this
// hardware and returns ErrInvalidCountParams.
func (t *Avalon) Setup(p CountParams) error {
	if p.Method == CountUp {
		return ErrInvalidCountParams
	}

	t.bus.Write32(avtOffControl, avtCtrlStop)
	t.bus.Write16(avtOffPeriodL, uint16(p.LoadValue))
	t.bus.Write16(avtOffPeriodH, uint16(p.LoadValue>>16))

	t.controlFlags = 0
	if p.Reload == ReloadEnable {
		t.controlFlags = avtCtrlCont
	}
	return nil
}

// Start begins counting down from the programmed period.
func (t *Avalon) Start() {
	t.bus.Write32(avtOffControl, t.controlFlags|avtCtrlStart)
}

// Stop halts the counter.
func (t *Avalon) Stop() {
	t.bus.Write32(avtOffControl, t.controlFlags|avtCtrlStop)
}

// ReadCounter latches a snapshot and returns the 32-bit value. The two
// half-reads are a single latched snapshot, so they cannot tear against the
// running counter; concurrent snapshots from two contexts are serialized by
// the caller (the timebase reads from one context at a time per port).
func (t *Avalon) ReadCounter() uint32 {
	t.bus.Write16(avtOffSnapL, 0)
	return uint32(t.bus.Read16(avtOffSnapH))<<16 | uint32(t.bus.Read16(avtOffSnapL))
}

// Frequency returns the timer clock in Hz.
func (t *Avalon) Frequency() uint32 {
	return t.freq
}

// SetupInterrupt installs cb for period expiry and arms the timeout
// interrupt condition.
func (t *Avalon) SetupInterrupt(cb func()) error {
	if t.intc == nil {
		return errors.New("timer: no interrupt line wired")
	}
	t.intc.Disable(t.line)
	t.controlFlags |= avtCtrlITO
	t.callback = cb
	t.intc.Register(t.line, t.serviceInterrupt)
	t.bus.Write32(avtOffStatus, 0)
	t.intc.Enable(t.line)
	return nil
}

// EnableInterrupt unmasks the timer's interrupt line.
func (t *Avalon) EnableInterrupt() {
	if t.intc != nil {
		t.intc.Enable(t.line)
	}
}

// DisableInterrupt masks the timer's interrupt line.
func (t *Avalon) DisableInterrupt() {
	if t.intc != nil {
		t.intc.Disable(t.line)
	}
}

func (t *Avalon) serviceInterrupt() {
	// Writing the status register clears the timeout condition.
	t.bus.Write32(avtOffStatus, 0)
	if t.callback != nil {
		t.callback()
	}
}

// Close stops the timer, zeroes its registers and detaches its interrupt.
func (t *Avalon) Close() error {
	if t.intc != nil {
		t.intc.Disable(t.line)
		t.intc.Register(t.line, nil)
	}
	t.bus.Write32(avtOffControl, avtCtrlStop)
	t.bus.Write16(avtOffPeriodL, 0)
	t.bus.Write16(avtOffPeriodH, 0)
	t.bus.Write32(avtOffStatus, 0)
	return nil
}
