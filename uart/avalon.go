package uart

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/kestrel-embedded/softhal/hw"
	"github.com/kestrel-embedded/softhal/queue"
	"github.com/kestrel-embedded/softhal/timebase"
)

// Avalon UART register map. Status and control interrupt-enable bits share
// positions. The transmitter is a single holding register; TMT additionally
// reports the shifter idle.
const (
	avOffRxData  = 0x00
	avOffTxData  = 0x04
	avOffStatus  = 0x08
	avOffControl = 0x0C
	avOffDivisor = 0x10

	avStatPE   = 0x001
	avStatFE   = 0x002
	avStatROE  = 0x008
	avStatTMT  = 0x020
	avStatTRDY = 0x040
	avStatRRDY = 0x080

	avCtrlPE   = avStatPE
	avCtrlFE   = avStatFE
	avCtrlROE  = avStatROE
	avCtrlTRDY = avStatTRDY
	avCtrlRRDY = avStatRRDY

	avErrMask = avStatPE | avStatFE | avStatROE
)

// Avalon drives an Avalon UART-family port (backend B): single RX/TX holding
// registers, per-condition interrupt enables, and a software-programmed baud
// divisor derived from the peripheral clock.
type Avalon struct {
	bus  hw.Bus
	intc hw.IntrCtrl
	line uint32
	freq uint32
	tb   *timebase.Timebase

	txq *queue.Fixed
	rxq *queue.Fixed

	// Shadow of the control register: the enabled interrupt conditions.
	// The transmit-ready enable is armed by Put/Write and disarmed by the
	// ISR once the queue drains, so it only fires with data to send.
	interruptFlags uint32

	lastErr         uint32
	framePeriodUsec uint32
}

var _ Port = (*Avalon)(nil)

// NewAvalon constructs the driver and applies DefaultParams. freq is the
// peripheral clock in Hz, used to derive the baud divisor.
func NewAvalon(bus hw.Bus, intc hw.IntrCtrl, line, freq uint32, cfg Config, tb *timebase.Timebase) (*Avalon, error) {
	txq, err := queue.New(cfg.txSize())
	if err != nil {
		return nil, fmt.Errorf("uart: tx queue: %w", err)
	}
	rxq, err := queue.New(cfg.rxSize())
	if err != nil {
		return nil, fmt.Errorf("uart: rx queue: %w", err)
	}

	glog.V(1).Infof("uart/avalon: line=%d freq=%dHz txbuf=%d rxbuf=%d", line, freq, txq.Cap(), rxq.Cap())

	u := &Avalon{bus: bus, intc: intc, line: line, freq: freq, tb: tb, txq: txq, rxq: rxq}
	if err := u.Setup(DefaultParams()); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *Avalon) validate(p Params) error {
	switch p.Bitrate {
	case 9600, 19200, 38400, 57600, 115200:
	default:
		return fmt.Errorf("%w: bitrate %d", ErrInvalidConfig, p.Bitrate)
	}
	switch p.DataBits {
	case 7, 8:
	default:
		return fmt.Errorf("%w: data bits %d", ErrInvalidConfig, p.DataBits)
	}
	switch p.Parity {
	case ParityNone, ParityOdd, ParityEven:
	default:
		return fmt.Errorf("%w: parity %d", ErrInvalidConfig, p.Parity)
	}
	switch p.StopBits {
	case 1, 2:
	default:
		return fmt.Errorf("%w: stop bits %d", ErrInvalidConfig, p.StopBits)
	}
	if p.Flow != FlowNone {
		return fmt.Errorf("%w: flow control %d", ErrInvalidConfig, p.Flow)
	}
	return nil
}

// Setup applies p wholesale, programming the baud divisor from the
// peripheral clock and reinstalling the interrupt handler.
func (u *Avalon) Setup(p Params) error {
	if err := u.validate(p); err != nil {
		return err
	}
	glog.V(2).Infof("uart/avalon: setup %d bps %d%c%d", p.Bitrate, p.DataBits, parityChar(p.Parity), p.StopBits)

	u.intc.Disable(u.line)
	u.framePeriodUsec = p.FramePeriodUsec()

	divisor := (u.freq + p.Bitrate/2) / p.Bitrate
	u.bus.Write32(avOffDivisor, divisor)

	u.txq.Clear()
	u.rxq.Clear()
	u.lastErr = 0

	u.setupInterrupt()
	u.intc.Enable(u.line)

	return nil
}

func (u *Avalon) setupInterrupt() {
	u.bus.Write32(avOffControl, 0)

	u.interruptFlags = avCtrlPE | avCtrlFE | avCtrlROE | avCtrlRRDY

	u.intc.Register(u.line, u.serviceInterrupt)

	u.bus.Write32(avOffControl, u.interruptFlags)
	u.bus.Write32(avOffStatus, 0)
}

// Get pops one received byte, or fails with ErrWouldBlock. Never waits.
func (u *Avalon) Get() (byte, error) {
	u.intc.Disable(u.line)
	defer u.intc.Enable(u.line)

	if u.rxq.Empty() {
		return 0, ErrWouldBlock
	}
	b := u.rxq.Front()
	u.rxq.Pop()
	return b, nil
}

// Put accepts one byte for transmission, writing through to the holding
// register when it is free (oldest byte first, preserving order) and arming
// the transmit-ready interrupt so the ISR keeps the register fed.
func (u *Avalon) Put(b byte) error {
	u.intc.Disable(u.line)
	defer u.intc.Enable(u.line)

	var err error
	if u.bus.Read32(avOffStatus)&avStatTRDY != 0 {
		if u.txq.Empty() {
			u.bus.Write32(avOffTxData, uint32(b))
		} else {
			u.bus.Write32(avOffTxData, uint32(u.txq.Front()))
			u.txq.Pop()
			u.txq.Push(b)
		}
	} else if !u.txq.Full() {
		u.txq.Push(b)
	} else {
		err = ErrBufferFull
	}
	u.armTransmit()
	return err
}

// Read fills p only if that many bytes are already buffered; otherwise it
// fails with ErrWouldBlock and leaves the queue untouched. Never waits.
func (u *Avalon) Read(p []byte) error {
	u.intc.Disable(u.line)
	defer u.intc.Enable(u.line)

	if u.rxq.Len() < len(p) {
		return ErrWouldBlock
	}
	for i := range p {
		p[i] = u.rxq.Front()
		u.rxq.Pop()
	}
	return nil
}

// Write queues all of p, or none of it (ErrBufferFull), then arms the
// transmit-ready interrupt so the ISR starts draining.
func (u *Avalon) Write(p []byte) error {
	u.intc.Disable(u.line)
	defer u.intc.Enable(u.line)

	err := ErrBufferFull
	if u.txq.Available() >= len(p) {
		for _, b := range p {
			u.txq.Push(b)
		}
		err = nil
	}
	u.armTransmit()
	return err
}

// armTransmit enables the transmit-ready interrupt condition. Caller holds
// the line disabled.
func (u *Avalon) armTransmit() {
	u.interruptFlags |= avCtrlTRDY
	u.bus.Write32(avOffControl, u.interruptFlags)
}

// Clear empties both queues and the latched error word.
func (u *Avalon) Clear() {
	u.intc.Disable(u.line)
	u.txq.Clear()
	u.rxq.Clear()
	u.lastErr = 0
	u.intc.Enable(u.line)
}

// Flush drains the transmit queue through the holding register, waits for
// the shifter to go idle, then disarms the transmit-ready interrupt. Each
// busy-wait is bounded by one frame period with an extra boundary check.
func (u *Avalon) Flush() error {
	u.intc.Disable(u.line)
	defer u.intc.Enable(u.line)

	for !u.txq.Empty() {
		if !u.waitStatusReady(avStatTRDY) {
			return ErrTimeout
		}
		u.bus.Write32(avOffTxData, uint32(u.txq.Front()))
		u.txq.Pop()
	}
	if !u.waitStatusReady(avStatTRDY) {
		return ErrTimeout
	}
	if !u.waitStatusReady(avStatTMT) {
		return ErrTimeout
	}

	u.interruptFlags &^= avCtrlTRDY
	u.bus.Write32(avOffControl, u.interruptFlags)
	return nil
}

// waitStatusReady busy-waits for the given status bits, bounded by one frame
// period, with one extra check exactly at the deadline.
func (u *Avalon) waitStatusReady(status uint32) bool {
	base := u.tb.Now()
	deadline := u.tb.ConvertUsecToCount(u.framePeriodUsec)

	for u.bus.Read32(avOffStatus)&status != status {
		if u.tb.Timeout(base, deadline) {
			if u.bus.Read32(avOffStatus)&status == status {
				break
			}
			return false
		}
	}
	return true
}

// FramePeriodUsec returns the frame period cached by the last Setup.
func (u *Avalon) FramePeriodUsec() uint32 {
	return u.framePeriodUsec
}

func (u *Avalon) errorOccurred(mask uint32) bool {
	u.intc.Disable(u.line)
	lastErr := u.lastErr
	u.intc.Enable(u.line)
	return lastErr&mask != 0
}

// OverrunErrorOccurred reports whether an overrun has latched since Clear.
func (u *Avalon) OverrunErrorOccurred() bool { return u.errorOccurred(avStatROE) }

// FramingErrorOccurred reports whether a framing error has latched since Clear.
func (u *Avalon) FramingErrorOccurred() bool { return u.errorOccurred(avStatFE) }

// ParityErrorOccurred reports whether a parity error has latched since Clear.
func (u *Avalon) ParityErrorOccurred() bool { return u.errorOccurred(avStatPE) }

// Close tears down the interrupt path and quiesces the port.
func (u *Avalon) Close() error {
	u.intc.Disable(u.line)
	u.intc.Register(u.line, nil)
	u.bus.Write32(avOffDivisor, 0)
	u.bus.Write32(avOffControl, 0)
	u.bus.Write32(avOffStatus, 0)
	return nil
}

// serviceInterrupt is the port's ISR: latch any error condition (writing the
// status register resets it so reception continues), then service RX and TX.
func (u *Avalon) serviceInterrupt() {
	status := u.bus.Read32(avOffStatus)

	if status&avErrMask != 0 {
		u.lastErr |= status & avErrMask
		u.bus.Write32(avOffStatus, 0)
	}

	if status&avStatRRDY != 0 {
		u.receiveInterrupt()
	}
	if status&avStatTRDY != 0 {
		u.transmitInterrupt()
	}
}

// receiveInterrupt takes the single byte in the holding register. A full
// receive queue discards the byte and latches overrun (drop-new policy).
func (u *Avalon) receiveInterrupt() {
	if u.rxq.Full() {
		u.lastErr |= avStatROE
		u.bus.Read32(avOffRxData) // thrown away
	} else {
		u.rxq.Push(byte(u.bus.Read32(avOffRxData)))
	}
}

// transmitInterrupt feeds the holding register one byte, or disarms the
// transmit-ready interrupt once there is nothing left so it stops firing.
func (u *Avalon) transmitInterrupt() {
	if u.txq.Empty() {
		u.interruptFlags &^= avCtrlTRDY
		u.bus.Write32(avOffControl, u.interruptFlags)
	} else {
		u.bus.Write32(avOffTxData, uint32(u.txq.Front()))
		u.txq.Pop()
	}
}
