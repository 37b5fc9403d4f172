package sim

import "sync"

// UART Lite register map and bits, as decoded by the model.
const (
	uliteOffRxFifo = 0x0
	uliteOffTxFifo = 0x4
	uliteOffStatus = 0x8
	uliteOffCtrl   = 0xC

	uliteStatRxValid  = 0x01
	uliteStatRxFull   = 0x02
	uliteStatTxEmpty  = 0x04
	uliteStatTxFull   = 0x08
	uliteStatIntrOn   = 0x10
	uliteStatOverrun  = 0x20
	uliteStatFraming  = 0x40
	uliteStatParity   = 0x80

	uliteCtrlRstTx  = 0x01
	uliteCtrlRstRx  = 0x02
	uliteCtrlIntrEn = 0x10

	// ULiteFIFODepth is the depth of the modeled RX and TX FIFOs.
	ULiteFIFODepth = 16
)

// ULiteUART models a UART Lite peripheral: 16-deep RX/TX FIFOs behind a
// status/control register pair, with a single interrupt output.
//
// By default the TX FIFO drains instantly — a written byte is "on the wire"
// (appended to Transmitted, or fed to a peer) before the write returns.
// StickTx freezes the transmitter so TX-full and flush-deadline paths can be
// tested.
type ULiteUART struct {
	mmio

	mu      sync.Mutex
	rxFifo  []byte
	txFifo  []byte
	errBits uint32
	intrOn  bool
	stuckTx bool

	txLog []byte
	peer  *ULiteUART

	intc *Intc
	line uint32
}

// NewULiteUART returns a model wired to raise interrupts on line via intc.
func NewULiteUART(intc *Intc, line uint32) *ULiteUART {
	m := &ULiteUART{intc: intc, line: line}
	m.mmio = mmio{rd: m.read, wr: m.write}
	return m
}

// SetPeer connects the transmitter to another model's receiver, forming a
// serial link for loopback tests.
func (m *ULiteUART) SetPeer(peer *ULiteUART) {
	m.mu.Lock()
	m.peer = peer
	m.mu.Unlock()
}

// StickTx freezes (or unfreezes) the transmitter. While stuck, written bytes
// pile up in the TX FIFO and the device never reports TX progress.
func (m *ULiteUART) StickTx(stuck bool) {
	m.mu.Lock()
	m.stuckTx = stuck
	m.mu.Unlock()
}

// FeedRx delivers bytes to the receiver, as if they arrived on the wire.
// Bytes beyond the FIFO depth are dropped and latch the overrun status bit.
func (m *ULiteUART) FeedRx(data ...byte) {
	m.mu.Lock()
	for _, b := range data {
		if len(m.rxFifo) >= ULiteFIFODepth {
			m.errBits |= uliteStatOverrun
			continue
		}
		m.rxFifo = append(m.rxFifo, b)
	}
	raise := m.intrOn
	m.mu.Unlock()
	if raise {
		m.intc.Raise(m.line)
	}
}

// InjectError latches receive-error status bits (overrun, framing, parity)
// and raises the line, as the receiver does on a corrupted frame.
func (m *ULiteUART) InjectError(statusBits uint32) {
	m.mu.Lock()
	m.errBits |= statusBits & (uliteStatOverrun | uliteStatFraming | uliteStatParity)
	raise := m.intrOn
	m.mu.Unlock()
	if raise {
		m.intc.Raise(m.line)
	}
}

// Transmitted returns a copy of every byte that has left the transmitter.
func (m *ULiteUART) Transmitted() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.txLog...)
}

func (m *ULiteUART) read(offset uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch offset {
	case uliteOffRxFifo:
		if len(m.rxFifo) == 0 {
			return 0
		}
		b := m.rxFifo[0]
		m.rxFifo = m.rxFifo[1:]
		return uint32(b)
	case uliteOffStatus:
		return m.status()
	}
	return 0
}

func (m *ULiteUART) status() uint32 {
	s := m.errBits
	if len(m.rxFifo) > 0 {
		s |= uliteStatRxValid
	}
	if len(m.rxFifo) >= ULiteFIFODepth {
		s |= uliteStatRxFull
	}
	if len(m.txFifo) == 0 && !m.stuckTx {
		s |= uliteStatTxEmpty
	}
	if len(m.txFifo) >= ULiteFIFODepth {
		s |= uliteStatTxFull
	}
	if m.intrOn {
		s |= uliteStatIntrOn
	}
	return s
}

func (m *ULiteUART) write(offset, value uint32) {
	var raise bool
	var toPeer []byte

	m.mu.Lock()
	switch offset {
	case uliteOffTxFifo:
		if m.stuckTx {
			if len(m.txFifo) < ULiteFIFODepth {
				m.txFifo = append(m.txFifo, byte(value))
			}
			break
		}
		// Instant drain: the byte leaves the wire before the write returns.
		m.txLog = append(m.txLog, byte(value))
		toPeer = append(toPeer, byte(value))
		raise = m.intrOn // TX FIFO became empty again
	case uliteOffCtrl:
		if value&uliteCtrlRstRx != 0 {
			m.rxFifo = nil
			m.errBits = 0
		}
		if value&uliteCtrlRstTx != 0 {
			m.txFifo = nil
		}
		m.intrOn = value&uliteCtrlIntrEn != 0
		raise = m.intrOn && len(m.rxFifo) > 0
	}
	peer := m.peer
	m.mu.Unlock()

	if peer != nil && len(toPeer) > 0 {
		peer.FeedRx(toPeer...)
	}
	if raise {
		m.intc.Raise(m.line)
	}
}
