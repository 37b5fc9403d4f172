package sim

import "sync"

// Regs is a plain word-addressed register file satisfying hw.Bus. It backs
// tests for the simpler peripherals (timers, parallel I/O) that need no full
// behavioral model; OnRead and OnWrite hooks let a test splice in
// register side effects such as snapshot latching.
type Regs struct {
	mu    sync.Mutex
	words map[uint32]uint32

	// OnWrite, when set, intercepts every write. Return true to suppress
	// the store into the register file.
	OnWrite func(offset, value uint32) bool

	// OnRead, when set, may override the value returned for a read.
	OnRead func(offset, stored uint32) uint32
}

// NewRegs returns an all-zero register file.
func NewRegs() *Regs {
	return &Regs{words: make(map[uint32]uint32)}
}

func (r *Regs) read(offset uint32) uint32 {
	r.mu.Lock()
	v := r.words[offset]
	r.mu.Unlock()
	if r.OnRead != nil {
		v = r.OnRead(offset, v)
	}
	return v
}

func (r *Regs) write(offset, value uint32) {
	if r.OnWrite != nil && r.OnWrite(offset, value) {
		return
	}
	r.mu.Lock()
	r.words[offset] = value
	r.mu.Unlock()
}

// Peek reads a word without triggering OnRead.
func (r *Regs) Peek(offset uint32) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.words[offset]
}

// Poke stores a word without triggering OnWrite.
func (r *Regs) Poke(offset, value uint32) {
	r.mu.Lock()
	r.words[offset] = value
	r.mu.Unlock()
}

func (r *Regs) Read8(offset uint32) uint8       { return uint8(r.read(offset)) }
func (r *Regs) Write8(offset uint32, v uint8)   { r.write(offset, uint32(v)) }
func (r *Regs) Read16(offset uint32) uint16     { return uint16(r.read(offset)) }
func (r *Regs) Write16(offset uint32, v uint16) { r.write(offset, uint32(v)) }
func (r *Regs) Read32(offset uint32) uint32     { return r.read(offset) }
func (r *Regs) Write32(offset uint32, v uint32) { r.write(offset, v) }
