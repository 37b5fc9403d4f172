package timer

import (
	"errors"

	"github.com/golang/glog"

	"github.com/kestrel-embedded/softhal/hw"
)

// UART Lite-family timer/counter register map (first counter of the block).
const (
	ultOffCSR     = 0x0
	ultOffLoad    = 0x4
	ultOffCounter = 0x8

	ultCSRDownCount  = 0x002
	ultCSRAutoReload = 0x010
	ultCSRLoad       = 0x020
	ultCSREnableInt  = 0x040
	ultCSREnable     = 0x080
	ultCSRIntExpired = 0x100
)

// ULite drives a UART Lite-family timer/counter. Both count directions are
// supported in hardware.
type ULite struct {
	bus  hw.Bus
	intc hw.IntrCtrl
	line uint32
	freq uint32

	interruptFlags uint32
	callback       func()
}

var _ Device = (*ULite)(nil)

// NewULite constructs the timer and applies DefaultCountParams. intc may be
// nil when the timer's interrupt output is not wired; SetupInterrupt then
// fails.
func NewULite(bus hw.Bus, intc hw.IntrCtrl, line, freq uint32) *ULite {
	glog.V(1).Infof("timer/ulite: line=%d freq=%dHz", line, freq)
	t := &ULite{bus: bus, intc: intc, line: line, freq: freq}
	t.Setup(DefaultCountParams()) // cannot fail: both directions supported
	return t
}

// Setup programs direction, reload and the load value. The timer is left
// stopped.
func (t *ULite) Setup(p CountParams) error {
	t.bus.Write32(ultOffCSR, 0)
	t.bus.Write32(ultOffLoad, p.LoadValue)

	// Latch the load value into the counter, then set the run configuration.
	t.bus.Write32(ultOffCSR, ultCSRLoad)

	var csr uint32
	if p.Reload == ReloadEnable {
		csr |= ultCSRAutoReload
	}
	if p.Method == CountDown {
		csr |= ultCSRDownCount
	}
	t.bus.Write32(ultOffCSR, csr)

	return nil
}

// Start begins counting.
func (t *ULite) Start() {
	csr := t.bus.Read32(ultOffCSR)
	csr |= ultCSREnable
	csr |= t.interruptFlags
	t.bus.Write32(ultOffCSR, csr)
}

// Stop halts counting and masks the expiry interrupt.
func (t *ULite) Stop() {
	csr := t.bus.Read32(ultOffCSR)
	csr &^= ultCSREnable
	csr &^= ultCSREnableInt
	t.bus.Write32(ultOffCSR, csr)
}

// ReadCounter returns the live counter value.
func (t *ULite) ReadCounter() uint32 {
	return t.bus.Read32(ultOffCounter)
}

// Frequency returns the timer clock in Hz.
func (t *ULite) Frequency() uint32 {
	return t.freq
}

// SetupInterrupt installs cb for counter expiry. Start arms it together with
// the enable bit.
func (t *ULite) SetupInterrupt(cb func()) error {
	if t.intc == nil {
		return errors.New("timer: no interrupt line wired")
	}
	t.intc.Disable(t.line)
	t.interruptFlags = ultCSREnableInt
	t.callback = cb
	t.intc.Register(t.line, t.serviceInterrupt)
	t.intc.Enable(t.line)
	return nil
}

// EnableInterrupt unmasks the timer's interrupt line.
func (t *ULite) EnableInterrupt() {
	if t.intc != nil {
		t.intc.Enable(t.line)
	}
}

// DisableInterrupt masks the timer's interrupt line.
func (t *ULite) DisableInterrupt() {
	if t.intc != nil {
		t.intc.Disable(t.line)
	}
}

func (t *ULite) serviceInterrupt() {
	// Acknowledge expiry by writing the sticky bit back.
	csr := t.bus.Read32(ultOffCSR)
	t.bus.Write32(ultOffCSR, csr|ultCSRIntExpired)
	if t.callback != nil {
		t.callback()
	}
}

// Close stops the timer and detaches its interrupt.
func (t *ULite) Close() error {
	if t.intc != nil {
		t.intc.Disable(t.line)
		t.intc.Register(t.line, nil)
	}
	t.bus.Write32(ultOffCSR, 0)
	return nil
}
