// Package uart provides interrupt-driven, buffered serial-port drivers for
// the two supported peripheral families. Foreground calls never block waiting
// for data or buffer space; the ISR moves bytes between the hardware FIFOs
// and fixed-capacity software queues in the background. The only blocking
// operation is Flush, whose busy-waits are bounded by frame-period deadlines
// on the timebase.
//
// Per-port synchronization is the port's own interrupt line: every foreground
// access to the queues or the latched error word runs between
// IntrCtrl.Disable and IntrCtrl.Enable on that line. The port's ISR is the
// only concurrent mutator, so masking it is sufficient and cheaper than a
// global mask or a lock.
package uart

import "errors"

var (
	// ErrWouldBlock is returned by Get and Read when the receive queue holds
	// fewer bytes than requested. Transient; retry later.
	ErrWouldBlock = errors.New("uart: no data available")

	// ErrBufferFull is returned by Put and Write when neither the hardware
	// FIFO nor the transmit queue can accept the data. Transient; retry later.
	ErrBufferFull = errors.New("uart: transmit buffer full")

	// ErrTimeout is returned by Flush when the hardware stops reporting
	// transmit progress within a frame-period-bounded deadline. Treated as a
	// hardware or link fault.
	ErrTimeout = errors.New("uart: hardware timeout")

	// ErrInvalidConfig is returned by Setup, wrapped with the offending
	// parameter, for combinations outside the backend's supported set.
	ErrInvalidConfig = errors.New("uart: unsupported configuration")
)

// Parity selects the parity bit generation and checking mode.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

// FlowControl selects the flow-control mode. Both backends reject anything
// but FlowNone; the other values are carried so configurations can express
// them and be refused explicitly.
type FlowControl uint8

const (
	FlowNone FlowControl = iota
	FlowHardware
	FlowXonXoff
)

// Params is the wholesale line configuration applied by Setup.
type Params struct {
	Bitrate  uint32
	DataBits uint8
	Parity   Parity
	StopBits uint8
	Flow     FlowControl
}

// DefaultParams returns 115200 bps, 8 data bits, no parity, 1 stop bit, no
// flow control.
func DefaultParams() Params {
	return Params{Bitrate: 115200, DataBits: 8, Parity: ParityNone, StopBits: 1, Flow: FlowNone}
}

// FramePeriodUsec returns the time to move one character frame across the
// wire — start bit, data bits, parity bit if any, stop bits — in
// microseconds, rounded up.
func (p Params) FramePeriodUsec() uint32 {
	const startBit = 1
	parityBit := uint32(1)
	if p.Parity == ParityNone {
		parityBit = 0
	}
	bitsPerFrame := startBit + uint32(p.DataBits) + parityBit + uint32(p.StopBits)
	return ((1000000 * bitsPerFrame) + (p.Bitrate - 1)) / p.Bitrate
}

// Port is the serial driver interface implemented by both backends.
//
// Get, Put, Read and Write are non-blocking: they either complete against
// the software queues (and opportunistically the hardware FIFO) or fail with
// a transient error. Flush blocks until queued data is on the wire or a
// deadline expires. The error predicates report conditions latched by the
// ISR since the last Clear.
type Port interface {
	Setup(p Params) error
	Get() (byte, error)
	Put(b byte) error
	Read(p []byte) error
	Write(p []byte) error
	Clear()
	Flush() error
	FramePeriodUsec() uint32
	OverrunErrorOccurred() bool
	FramingErrorOccurred() bool
	ParityErrorOccurred() bool
	Close() error
}

// Config sizes a driver's software queues. Zero fields take the defaults.
type Config struct {
	TxBufSize int
	RxBufSize int
}

const defaultBufSize = 64

func (c Config) txSize() int {
	if c.TxBufSize <= 0 {
		return defaultBufSize
	}
	return c.TxBufSize
}

func (c Config) rxSize() int {
	if c.RxBufSize <= 0 {
		return defaultBufSize
	}
	return c.RxBufSize
}
