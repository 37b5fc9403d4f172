package sim

import "sync"

// Avalon UART register map and bits, as decoded by the model. Status and
// control interrupt-enable bits share positions.
const (
	avOffRxData  = 0x00
	avOffTxData  = 0x04
	avOffStatus  = 0x08
	avOffControl = 0x0C
	avOffDivisor = 0x10

	avStatPE   = 0x001
	avStatFE   = 0x002
	avStatBRK  = 0x004
	avStatROE  = 0x008
	avStatTOE  = 0x010
	avStatTMT  = 0x020
	avStatTRDY = 0x040
	avStatRRDY = 0x080
)

// AvalonUART models an Avalon UART: single RX and TX holding registers, a
// status/control pair with per-condition interrupt enables, and a software
// programmable baud divisor.
//
// As with ULiteUART, the transmitter drains instantly unless StickTx is set.
type AvalonUART struct {
	mmio

	mu      sync.Mutex
	rxHold  byte
	rxValid bool
	txBusy  bool // StickTx only: holding register occupied
	errBits uint32
	control uint32
	divisor uint32
	stuckTx bool

	txLog []byte
	peer  *AvalonUART

	intc *Intc
	line uint32
}

// NewAvalonUART returns a model wired to raise interrupts on line via intc.
func NewAvalonUART(intc *Intc, line uint32) *AvalonUART {
	m := &AvalonUART{intc: intc, line: line}
	m.mmio = mmio{rd: m.read, wr: m.write}
	return m
}

// SetPeer connects the transmitter to another model's receiver.
func (m *AvalonUART) SetPeer(peer *AvalonUART) {
	m.mu.Lock()
	m.peer = peer
	m.mu.Unlock()
}

// StickTx freezes (or unfreezes) the transmitter: the next written byte
// occupies the holding register forever and TRDY/TMT stay deasserted.
func (m *AvalonUART) StickTx(stuck bool) {
	m.mu.Lock()
	m.stuckTx = stuck
	m.mu.Unlock()
}

// FeedRx delivers one byte to the receiver. If the previous byte was never
// read the new one is lost and the receiver-overrun bit latches.
func (m *AvalonUART) FeedRx(data ...byte) {
	for _, b := range data {
		m.mu.Lock()
		if m.rxValid {
			m.errBits |= avStatROE
		} else {
			m.rxHold = b
			m.rxValid = true
		}
		raise := m.irqPending()
		m.mu.Unlock()
		if raise {
			m.intc.Raise(m.line)
		}
	}
}

// InjectError latches error status bits (parity, framing, overrun) and
// raises the line if the matching interrupt is enabled.
func (m *AvalonUART) InjectError(statusBits uint32) {
	m.mu.Lock()
	m.errBits |= statusBits & (avStatPE | avStatFE | avStatBRK | avStatROE)
	raise := m.irqPending()
	m.mu.Unlock()
	if raise {
		m.intc.Raise(m.line)
	}
}

// Transmitted returns a copy of every byte that has left the transmitter.
func (m *AvalonUART) Transmitted() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.txLog...)
}

// Divisor returns the last value programmed into the baud divisor register.
func (m *AvalonUART) Divisor() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.divisor
}

// irqPending reports whether an enabled condition is asserted. Caller holds
// m.mu.
func (m *AvalonUART) irqPending() bool {
	return m.statusLocked()&m.control != 0
}

func (m *AvalonUART) statusLocked() uint32 {
	s := m.errBits
	if m.rxValid {
		s |= avStatRRDY
	}
	if !m.stuckTx && !m.txBusy {
		s |= avStatTRDY | avStatTMT
	}
	return s
}

func (m *AvalonUART) read(offset uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch offset {
	case avOffRxData:
		m.rxValid = false
		return uint32(m.rxHold)
	case avOffStatus:
		return m.statusLocked()
	case avOffControl:
		return m.control
	case avOffDivisor:
		return m.divisor
	}
	return 0
}

func (m *AvalonUART) write(offset, value uint32) {
	var raise bool
	var toPeer []byte

	m.mu.Lock()
	switch offset {
	case avOffTxData:
		if m.stuckTx {
			m.txBusy = true
			break
		}
		m.txLog = append(m.txLog, byte(value))
		toPeer = append(toPeer, byte(value))
		raise = m.irqPending() // TRDY still asserted
	case avOffStatus:
		// Any status write clears the latched error conditions.
		m.errBits = 0
	case avOffControl:
		m.control = value
		raise = m.irqPending()
	case avOffDivisor:
		m.divisor = value
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
