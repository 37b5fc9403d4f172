// Package gpio drives single-channel parallel I/O blocks. Two register-level
// backends are provided: ULite (tri-state direction register with a global
// interrupt enable) and Avalon (direction register with per-bit IRQ mask and
// edge capture).
package gpio

// Port is a 32-bit-wide parallel I/O channel.
//
// Direction is expressed as 1=output throughout this API. The underlying
// blocks disagree with each other (the ULite tri-state register uses 1=input);
// backends normalize at the register boundary.
type Port interface {
	// WriteData drives the output register. Bits configured as inputs are
	// unaffected on the wire.
	WriteData(value uint32)

	// ReadData samples the pin state.
	ReadData() uint32

	// SetDirection configures pin directions, 1=output.
	SetDirection(outputs uint32)

	// Direction returns the current direction mask, 1=output.
	Direction() uint32

	// SetupInterrupt arms input-change interrupts on the given bits and
	// installs cb to run on each event. An error is returned when the port
	// has no interrupt line wired.
	SetupInterrupt(bits uint32, cb func()) error

	// EnableInterrupt unmasks the port's interrupt line.
	EnableInterrupt()

	// DisableInterrupt masks the port's interrupt line.
	DisableInterrupt()

	// Close masks interrupts and releases the port.
	Close() error
}
