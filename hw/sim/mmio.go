package sim

// mmio adapts a model's 32-bit register handlers to the full hw.Bus width
// set. The peripherals modeled here decode only word-sized accesses; narrower
// ones read or write the low bits, which is how the softcore buses behave.
type mmio struct {
	rd func(offset uint32) uint32
	wr func(offset, value uint32)
}

func (m mmio) Read8(offset uint32) uint8         { return uint8(m.rd(offset)) }
func (m mmio) Write8(offset uint32, v uint8)     { m.wr(offset, uint32(v)) }
func (m mmio) Read16(offset uint32) uint16       { return uint16(m.rd(offset)) }
func (m mmio) Write16(offset uint32, v uint16)   { m.wr(offset, uint32(v)) }
func (m mmio) Read32(offset uint32) uint32       { return m.rd(offset) }
func (m mmio) Write32(offset uint32, v uint32)   { m.wr(offset, v) }
