package uart

import (
	"fmt"

	"github.com/golang/glog"

	"github.com/kestrel-embedded/softhal/hw"
	"github.com/kestrel-embedded/softhal/queue"
	"github.com/kestrel-embedded/softhal/timebase"
)

// UART Lite register map. The peripheral has no divisor register: its bitrate
// is fixed when the core is generated, so Setup validates the rate without
// programming it.
const (
	ulOffRxFifo  = 0x0
	ulOffTxFifo  = 0x4
	ulOffStatus  = 0x8
	ulOffControl = 0xC

	ulStatRxValid = 0x01
	ulStatTxEmpty = 0x04
	ulStatTxFull  = 0x08
	ulStatOverrun = 0x20
	ulStatFraming = 0x40
	ulStatParity  = 0x80

	ulCtrlRstTx  = 0x01
	ulCtrlRstRx  = 0x02
	ulCtrlIntrEn = 0x10

	ulErrMask = ulStatOverrun | ulStatFraming | ulStatParity

	ulFifoDepth = 16
)

// ULite drives a UART Lite-family port (backend A): 16-deep hardware FIFOs,
// a single combined interrupt, synthesis-fixed bitrate.
type ULite struct {
	bus  hw.Bus
	intc hw.IntrCtrl
	line uint32
	tb   *timebase.Timebase

	txq *queue.Fixed
	rxq *queue.Fixed

	lastErr         uint32
	framePeriodUsec uint32
}

var _ Port = (*ULite)(nil)

// NewULite constructs the driver and applies DefaultParams. cfg sizes the
// software queues.
func NewULite(bus hw.Bus, intc hw.IntrCtrl, line uint32, cfg Config, tb *timebase.Timebase) (*ULite, error) {
	txq, err := queue.New(cfg.txSize())
	if err != nil {
		return nil, fmt.Errorf("uart: tx queue: %w", err)
	}
	rxq, err := queue.New(cfg.rxSize())
	if err != nil {
		return nil, fmt.Errorf("uart: rx queue: %w", err)
	}

	glog.V(1).Infof("uart/ulite: line=%d txbuf=%d rxbuf=%d", line, txq.Cap(), rxq.Cap())

	u := &ULite{bus: bus, intc: intc, line: line, tb: tb, txq: txq, rxq: rxq}
	if err := u.Setup(DefaultParams()); err != nil {
		return nil, err
	}
	return u, nil
}

func (u *ULite) validate(p Params) error {
	switch p.Bitrate {
	case 9600, 19200, 38400, 57600, 115200, 230400:
	default:
		return fmt.Errorf("%w: bitrate %d", ErrInvalidConfig, p.Bitrate)
	}
	switch p.DataBits {
	case 5, 6, 7, 8:
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
	// Flow control is never supported, whatever the hardware might do.
	if p.Flow != FlowNone {
		return fmt.Errorf("%w: flow control %d", ErrInvalidConfig, p.Flow)
	}
	return nil
}

// Setup applies p wholesale: the line is reconfigured, both queues and the
// latched errors are cleared, and the interrupt handler is (re)installed.
func (u *ULite) Setup(p Params) error {
	if err := u.validate(p); err != nil {
		return err
	}
	glog.V(2).Infof("uart/ulite: setup %d bps %d%c%d", p.Bitrate, p.DataBits, parityChar(p.Parity), p.StopBits)

	u.intc.Disable(u.line)
	u.framePeriodUsec = p.FramePeriodUsec()

	u.txq.Clear()
	u.rxq.Clear()
	u.lastErr = 0

	u.setupInterrupt()
	u.intc.Enable(u.line)

	return nil
}

func parityChar(p Parity) byte {
	switch p {
	case ParityOdd:
		return 'O'
	case ParityEven:
		return 'E'
	}
	return 'N'
}

func (u *ULite) setupInterrupt() {
	u.bus.Write32(ulOffControl, 0)
	u.bus.Write32(ulOffControl, ulCtrlRstTx|ulCtrlRstRx)
	u.bus.Write32(ulOffControl, ulCtrlIntrEn)
	u.intc.Register(u.line, u.serviceInterrupt)
}

// Get pops one received byte, or fails with ErrWouldBlock. Never waits.
func (u *ULite) Get() (byte, error) {
	u.intc.Disable(u.line)
	defer u.intc.Enable(u.line)

	if u.rxq.Empty() {
		return 0, ErrWouldBlock
	}
	b := u.rxq.Front()
	u.rxq.Pop()
	return b, nil
}

// Put accepts one byte for transmission. If the hardware FIFO has room the
// oldest pending byte goes to hardware immediately — the queue's head when it
// is non-empty, otherwise b itself — keeping the transmitter fed without
// reordering. Fails with ErrBufferFull only when hardware and queue are both
// full.
func (u *ULite) Put(b byte) error {
	u.intc.Disable(u.line)
	defer u.intc.Enable(u.line)

	if u.bus.Read32(ulOffStatus)&ulStatTxFull == 0 {
		if u.txq.Empty() {
			u.bus.Write32(ulOffTxFifo, uint32(b))
		} else {
			u.bus.Write32(ulOffTxFifo, uint32(u.txq.Front()))
			u.txq.Pop()
			u.txq.Push(b)
		}
		return nil
	}
	if !u.txq.Full() {
		u.txq.Push(b)
		return nil
	}
	return ErrBufferFull
}

// Read fills p only if that many bytes are already buffered; otherwise it
// fails with ErrWouldBlock and leaves the queue untouched. Never waits.
func (u *ULite) Read(p []byte) error {
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

// Write queues all of p, or none of it (ErrBufferFull). Either way it then
// drains as much queued data into the hardware FIFO as currently fits, so
// transmission starts without waiting for the next interrupt.
func (u *ULite) Write(p []byte) error {
	u.intc.Disable(u.line)
	defer u.intc.Enable(u.line)

	err := ErrBufferFull
	if u.txq.Available() >= len(p) {
		for _, b := range p {
			u.txq.Push(b)
		}
		err = nil
	}
	u.writeToTxFifo()
	return err
}

// Clear empties both queues and the latched error word.
func (u *ULite) Clear() {
	u.intc.Disable(u.line)
	u.txq.Clear()
	u.rxq.Clear()
	u.lastErr = 0
	u.intc.Enable(u.line)
}

// Flush drains the transmit queue into hardware and waits for the line to go
// idle. Each wait is bounded: one frame period per byte slot, one frame
// period times the FIFO depth for the final drain, plus one trailing frame
// period so the last stop bit has left the wire. Returns ErrTimeout if the
// hardware stops making progress.
func (u *ULite) Flush() error {
	u.intc.Disable(u.line)
	defer u.intc.Enable(u.line)

	for !u.txq.Empty() {
		if !u.waitTxFifoReady() {
			return ErrTimeout
		}
		u.bus.Write32(ulOffTxFifo, uint32(u.txq.Front()))
		u.txq.Pop()
	}
	if !u.waitTxFifoEmpty() {
		return ErrTimeout
	}
	u.tb.WaitUsec(u.framePeriodUsec)
	return nil
}

// waitTxFifoReady busy-waits for space in the hardware FIFO, bounded by one
// frame period.
func (u *ULite) waitTxFifoReady() bool {
	base := u.tb.Now()
	deadline := u.tb.ConvertUsecToCount(u.framePeriodUsec)

	for u.bus.Read32(ulOffStatus)&ulStatTxFull != 0 {
		if u.tb.Timeout(base, deadline) {
			// One extra look exactly at the deadline absorbs polling jitter.
			if u.bus.Read32(ulOffStatus)&ulStatTxFull == 0 {
				break
			}
			return false
		}
	}
	return true
}

// waitTxFifoEmpty busy-waits for the FIFO and shifter to drain, bounded by
// one frame period per FIFO slot.
func (u *ULite) waitTxFifoEmpty() bool {
	base := u.tb.Now()
	deadline := u.tb.ConvertUsecToCount(u.framePeriodUsec * ulFifoDepth)

	for u.bus.Read32(ulOffStatus)&ulStatTxEmpty == 0 {
		if u.tb.Timeout(base, deadline) {
			if u.bus.Read32(ulOffStatus)&ulStatTxEmpty != 0 {
				break
			}
			return false
		}
	}
	return true
}

// writeToTxFifo moves queued bytes into the hardware FIFO until it fills or
// the queue empties. Bounded by the FIFO depth per call.
func (u *ULite) writeToTxFifo() {
	for i := 0; i < ulFifoDepth; i++ {
		if u.bus.Read32(ulOffStatus)&ulStatTxFull != 0 {
			break
		}
		if u.txq.Empty() {
			break
		}
		u.bus.Write32(ulOffTxFifo, uint32(u.txq.Front()))
		u.txq.Pop()
	}
}

// FramePeriodUsec returns the frame period cached by the last Setup.
func (u *ULite) FramePeriodUsec() uint32 {
	return u.framePeriodUsec
}

func (u *ULite) errorOccurred(mask uint32) bool {
	u.intc.Disable(u.line)
	lastErr := u.lastErr
	u.intc.Enable(u.line)
	return lastErr&mask != 0
}

// OverrunErrorOccurred reports whether an overrun has latched since Clear.
func (u *ULite) OverrunErrorOccurred() bool { return u.errorOccurred(ulStatOverrun) }

// FramingErrorOccurred reports whether a framing error has latched since Clear.
func (u *ULite) FramingErrorOccurred() bool { return u.errorOccurred(ulStatFraming) }

// ParityErrorOccurred reports whether a parity error has latched since Clear.
func (u *ULite) ParityErrorOccurred() bool { return u.errorOccurred(ulStatParity) }

// Close tears down the interrupt path and quiesces the port.
func (u *ULite) Close() error {
	u.intc.Disable(u.line)
	u.intc.Register(u.line, nil)
	u.bus.Write32(ulOffControl, 0)
	return nil
}

// serviceInterrupt is the port's ISR. A latched line error resets the receive
// path so a corrupted frame cannot wedge reception; otherwise RX is drained
// and TX refilled.
func (u *ULite) serviceInterrupt() {
	status := u.bus.Read32(ulOffStatus)

	if status&ulErrMask != 0 {
		u.lastErr |= status & ulErrMask
		u.bus.Write32(ulOffControl, ulCtrlRstRx)
		u.bus.Write32(ulOffControl, ulCtrlIntrEn)
		return
	}

	if status&ulStatRxValid != 0 {
		u.receiveInterrupt()
	}
	if status&ulStatTxFull == 0 {
		u.transmitInterrupt()
	}
}

// receiveInterrupt drains the hardware RX FIFO into the receive queue,
// bounded by the FIFO depth to keep ISR time bounded. When the queue is full
// the new byte is discarded and the overrun bit latches (drop-new policy: the
// oldest buffered data is what callers get).
func (u *ULite) receiveInterrupt() {
	for i := 0; i < ulFifoDepth; i++ {
		if u.bus.Read32(ulOffStatus)&ulStatRxValid == 0 {
			break
		}
		if u.rxq.Full() {
			u.lastErr |= ulStatOverrun
			u.bus.Read32(ulOffRxFifo) // thrown away
		} else {
			u.rxq.Push(byte(u.bus.Read32(ulOffRxFifo)))
		}
	}
}

func (u *ULite) transmitInterrupt() {
	u.writeToTxFifo()
}
