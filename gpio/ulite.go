package gpio

import (
	"errors"

	"github.com/golang/glog"

	"github.com/kestrel-embedded/softhal/hw"
)

// ULite-family GPIO register map, single channel.
const (
	ugpOffData = 0x000
	ugpOffTri  = 0x004
	ugpOffGIE  = 0x11C
	ugpOffISR  = 0x120
	ugpOffIER  = 0x128

	ugpGIEEnable = 0x80000000
	ugpIERChan1  = 0x1
)

// ULite drives a ULite-family GPIO channel.
type ULite struct {
	bus  hw.Bus
	intc hw.IntrCtrl
	line uint32

	outputs  uint32 // 1=output, API convention
	dataShad uint32 // last value written, data register is write-only on inputs
	callback func()
}

var _ Port = (*ULite)(nil)

// NewULite constructs the port with all pins configured as inputs and
// interrupts masked. intc may be nil when the channel interrupt is not wired.
func NewULite(bus hw.Bus, intc hw.IntrCtrl, line uint32) *ULite {
	glog.V(1).Infof("gpio/ulite: line=%d", line)
	p := &ULite{bus: bus, intc: intc, line: line}
	p.bus.Write32(ugpOffGIE, 0)
	p.bus.Write32(ugpOffIER, 0)
	p.SetDirection(0)
	return p
}

func (p *ULite) WriteData(value uint32) {
	p.dataShad = value
	p.bus.Write32(ugpOffData, value)
}

func (p *ULite) ReadData() uint32 {
	return p.bus.Read32(ugpOffData)
}

// SetDirection takes 1=output. The tri-state register is the inverse
// convention (1=input), so the mask is complemented on the way out.
func (p *ULite) SetDirection(outputs uint32) {
	p.outputs = outputs
	p.bus.Write32(ugpOffTri, ^outputs)
}

func (p *ULite) Direction() uint32 {
	return p.outputs
}

// SetupInterrupt arms input-change interrupts. The block interrupts on any
// change of the channel's inputs; bits narrower than the input set are
// filtered in the service routine.
func (p *ULite) SetupInterrupt(bits uint32, cb func()) error {
	if p.intc == nil {
		return errors.New("gpio: no interrupt line wired")
	}
	p.intc.Disable(p.line)
	p.callback = cb
	p.intc.Register(p.line, func() { p.serviceInterrupt(bits) })
	p.bus.Write32(ugpOffISR, ugpIERChan1) // clear a stale pending event
	p.bus.Write32(ugpOffIER, ugpIERChan1)
	p.bus.Write32(ugpOffGIE, ugpGIEEnable)
	p.intc.Enable(p.line)
	return nil
}

func (p *ULite) EnableInterrupt() {
	if p.intc != nil {
		p.intc.Enable(p.line)
	}
}

func (p *ULite) DisableInterrupt() {
	if p.intc != nil {
		p.intc.Disable(p.line)
	}
}

func (p *ULite) serviceInterrupt(bits uint32) {
	status := p.bus.Read32(ugpOffISR)
	if status&ugpIERChan1 == 0 {
		return
	}
	p.bus.Write32(ugpOffISR, status) // toggle-on-write acknowledge
	if bits != 0 && p.ReadData()&bits == 0 {
		// The change was on a pin the caller did not ask about.
		return
	}
	if p.callback != nil {
		p.callback()
	}
}

// Close masks the channel interrupt and reverts all pins to inputs.
func (p *ULite) Close() error {
	if p.intc != nil {
		p.intc.Disable(p.line)
		p.intc.Register(p.line, nil)
	}
	p.bus.Write32(ugpOffGIE, 0)
	p.bus.Write32(ugpOffIER, 0)
	p.SetDirection(0)
	return nil
}
