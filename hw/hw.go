// Package hw declares the two hardware interfaces every driver in this
// repository is written against: register-level I/O and interrupt-line
// control. On a target these would be satisfied by memory-mapped access and
// the platform's interrupt controller; in hosted builds they are satisfied by
// the register models in hw/sim.
package hw

// Bus provides fixed-width register access at offsets from a device's base
// address. Offsets are byte offsets.
type Bus interface {
	Read8(offset uint32) uint8
	Write8(offset uint32, value uint8)
	Read16(offset uint32) uint16
	Write16(offset uint32, value uint16)
	Read32(offset uint32) uint32
	Write32(offset uint32, value uint32)
}

// Handler is an interrupt service routine for one line. It runs in interrupt
// context: it must not block and has no return channel for errors.
type Handler func()

// IntrCtrl controls delivery of interrupts per line.
//
// Enable and Disable must be idempotent and safe to call from both foreground
// and interrupt context. Drivers rely on Disable(line)/Enable(line) pairs as
// their only critical-section primitive: while a port's line is disabled, that
// port's handler cannot run, so driver state shared with the handler can be
// touched freely.
type IntrCtrl interface {
	Register(line uint32, h Handler)
	Enable(line uint32)
	Disable(line uint32)
}
