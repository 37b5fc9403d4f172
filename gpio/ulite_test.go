package gpio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-embedded/softhal/hw/sim"
)

func TestULiteDirectionInvertsTristate(t *testing.T) {
	regs := sim.NewRegs()
	p := NewULite(regs, nil, 2)

	assert.Equal(t, uint32(0xFFFFFFFF), regs.Peek(ugpOffTri), "all inputs after construction")

	p.SetDirection(0x0000FF00)
	assert.Equal(t, uint32(0x0000FF00), p.Direction())
	assert.Equal(t, ^uint32(0x0000FF00), regs.Peek(ugpOffTri))
}

func TestULiteDataReadWrite(t *testing.T) {
	regs := sim.NewRegs()
	p := NewULite(regs, nil, 2)

	p.SetDirection(0xFF)
	p.WriteData(0xA5)
	assert.Equal(t, uint32(0xA5), regs.Peek(ugpOffData))

	regs.Poke(ugpOffData, 0x5A)
	assert.Equal(t, uint32(0x5A), p.ReadData())
}

func TestULiteChangeInterrupt(t *testing.T) {
	regs := sim.NewRegs()
	intc := sim.NewIntc()
	p := NewULite(regs, intc, 2)

	events := 0
	require.NoError(t, p.SetupInterrupt(0, func() { events++ }))
	assert.Equal(t, uint32(ugpIERChan1), regs.Peek(ugpOffIER))
	assert.Equal(t, uint32(ugpGIEEnable), regs.Peek(ugpOffGIE))

	regs.Poke(ugpOffISR, ugpIERChan1)
	intc.Raise(2)
	assert.Equal(t, 1, events)

	// Spurious assertion with no pending channel event is ignored.
	regs.Poke(ugpOffISR, 0)
	intc.Raise(2)
	assert.Equal(t, 1, events)
}

func TestULiteInterruptBitFilter(t *testing.T) {
	regs := sim.NewRegs()
	intc := sim.NewIntc()
	p := NewULite(regs, intc, 2)

	events := 0
	require.NoError(t, p.SetupInterrupt(0x4, func() { events++ }))

	regs.Poke(ugpOffISR, ugpIERChan1)
	regs.Poke(ugpOffData, 0x2) // change on a pin outside the requested set
	intc.Raise(2)
	assert.Equal(t, 0, events)

	regs.Poke(ugpOffISR, ugpIERChan1)
	regs.Poke(ugpOffData, 0x4)
	intc.Raise(2)
	assert.Equal(t, 1, events)
}

func TestULiteClose(t *testing.T) {
	regs := sim.NewRegs()
	intc := sim.NewIntc()
	p := NewULite(regs, intc, 2)
	require.NoError(t, p.SetupInterrupt(0, func() { t.Fatal("fired after close") }))

	require.NoError(t, p.Close())
	assert.Zero(t, regs.Peek(ugpOffGIE))
	assert.Zero(t, regs.Peek(ugpOffIER))
	assert.Equal(t, uint32(0xFFFFFFFF), regs.Peek(ugpOffTri))

	regs.Poke(ugpOffISR, ugpIERChan1)
	intc.Raise(2)
}
