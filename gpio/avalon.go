package gpio

import (
	"errors"

	"github.com/golang/glog"

	"github.com/kestrel-embedded/softhal/hw"
)

// Avalon-family PIO register map.
const (
	apOffData    = 0x0
	apOffDir     = 0x4
	apOffIrqMask = 0x8
	apOffEdgeCap = 0xC
)

// Avalon drives an Avalon-family PIO. The direction register matches the API
// convention (1=output) directly.
type Avalon struct {
	bus  hw.Bus
	intc hw.IntrCtrl
	line uint32

	outputs  uint32
	irqBits  uint32
	callback func()
}

var _ Port = (*Avalon)(nil)

// NewAvalon constructs the port with all pins configured as inputs and the
// IRQ mask cleared. intc may be nil when the PIO interrupt is not wired.
func NewAvalon(bus hw.Bus, intc hw.IntrCtrl, line uint32) *Avalon {
	glog.V(1).Infof("gpio/avalon: line=%d", line)
	p := &Avalon{bus: bus, intc: intc, line: line}
	p.bus.Write32(apOffIrqMask, 0)
	p.SetDirection(0)
	return p
}

func (p *Avalon) WriteData(value uint32) {
	p.bus.Write32(apOffData, value)
}

func (p *Avalon) ReadData() uint32 {
	return p.bus.Read32(apOffData)
}

func (p *Avalon) SetDirection(outputs uint32) {
	p.outputs = outputs
	p.bus.Write32(apOffDir, outputs)
}

func (p *Avalon) Direction() uint32 {
	return p.outputs
}

// SetupInterrupt arms edge-capture interrupts on the given input bits.
func (p *Avalon) SetupInterrupt(bits uint32, cb func()) error {
	if p.intc == nil {
		return errors.New("gpio: no interrupt line wired")
	}
	p.intc.Disable(p.line)
	p.irqBits = bits
	p.callback = cb
	p.intc.Register(p.line, p.serviceInterrupt)
	p.bus.Write32(apOffEdgeCap, bits) // clear stale captures
	p.bus.Write32(apOffIrqMask, bits)
	p.intc.Enable(p.line)
	return nil
}

func (p *Avalon) EnableInterrupt() {
	if p.intc != nil {
		p.intc.Enable(p.line)
	}
}

func (p *Avalon) DisableInterrupt() {
	if p.intc != nil {
		p.intc.Disable(p.line)
	}
}

func (p *Avalon) serviceInterrupt() {
	captured := p.bus.Read32(apOffEdgeCap) & p.irqBits
	if captured == 0 {
		return
	}
	p.bus.Write32(apOffEdgeCap, captured)
	if p.callback != nil {
		p.callback()
	}
}

// Close masks the PIO interrupt and reverts all pins to inputs.
func (p *Avalon) Close() error {
	if p.intc != nil {
		p.intc.Disable(p.line)
		p.intc.Register(p.line, nil)
	}
	p.bus.Write32(apOffIrqMask, 0)
	p.bus.Write32(apOffEdgeCap, 0xFFFFFFFF)
	p.SetDirection(0)
	return nil
}
