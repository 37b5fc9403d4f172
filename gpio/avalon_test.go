package gpio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrel-embedded/softhal/hw/sim"
)

func TestAvalonDirectionMatchesAPI(t *testing.T) {
	regs := sim.NewRegs()
	p := NewAvalon(regs, nil, 4)

	p.SetDirection(0x00FF00FF)
	assert.Equal(t, uint32(0x00FF00FF), p.Direction())
	assert.Equal(t, uint32(0x00FF00FF), regs.Peek(apOffDir))
}

func TestAvalonDataReadWrite(t *testing.T) {
	regs := sim.NewRegs()
	p := NewAvalon(regs, nil, 4)

	p.WriteData(0x1234)
	assert.Equal(t, uint32(0x1234), regs.Peek(apOffData))

	regs.Poke(apOffData, 0x4321)
	assert.Equal(t, uint32(0x4321), p.ReadData())
}

func TestAvalonEdgeInterrupt(t *testing.T) {
	regs := sim.NewRegs()
	intc := sim.NewIntc()
	p := NewAvalon(regs, intc, 4)

	events := 0
	require.NoError(t, p.SetupInterrupt(0x3, func() { events++ }))
	assert.Equal(t, uint32(0x3), regs.Peek(apOffIrqMask))

	regs.Poke(apOffEdgeCap, 0x1)
	intc.Raise(4)
	assert.Equal(t, 1, events)
	assert.Equal(t, uint32(0x1), regs.Peek(apOffEdgeCap),
		"service routine writes the captured bits back to clear them")

	// An edge outside the armed set does not reach the callback.
	regs.Poke(apOffEdgeCap, 0x8)
	intc.Raise(4)
	assert.Equal(t, 1, events)
}

func TestAvalonClose(t *testing.T) {
	regs := sim.NewRegs()
	intc := sim.NewIntc()
	p := NewAvalon(regs, intc, 4)
	require.NoError(t, p.SetupInterrupt(0x1, func() { t.Fatal("fired after close") }))

	require.NoError(t, p.Close())
	assert.Zero(t, regs.Peek(apOffIrqMask))
	assert.Zero(t, regs.Peek(apOffDir))

	regs.Poke(apOffEdgeCap, 0x1)
	intc.Raise(4)
}
