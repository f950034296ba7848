// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpu

// The Memory interface presents a 16-bit address space from which linked
// machine code may be read back, e.g. for disassembly.
type Memory interface {
	// LoadByte loads a single byte from the address and returns it.
	LoadByte(addr uint16) byte

	// LoadBytes loads multiple bytes from the address and stores them into
	// the buffer 'b'.
	LoadBytes(addr uint16, b []byte)

	// LoadAddress loads a little-endian 16-bit value from the requested
	// address and returns it.
	LoadAddress(addr uint16) uint16
}

// FlatMemory represents an entire 16-bit address space as a singular
// 64K buffer.
type FlatMemory struct {
	b [64 * 1024]byte
}

// NewFlatMemory creates a new 16-bit memory space.
func NewFlatMemory() *FlatMemory {
	return &FlatMemory{}
}

// LoadByte loads a single byte from the address and returns it.
func (m *FlatMemory) LoadByte(addr uint16) byte {
	return m.b[addr]
}

// LoadBytes loads multiple bytes from the address. Bytes beyond the end of
// the address space read as zero.
func (m *FlatMemory) LoadBytes(addr uint16, b []byte) {
	n := copy(b, m.b[addr:])
	clear(b[n:])
}

// LoadAddress loads a little-endian 16-bit value from the requested address.
// The high byte of an address stored at $FFFF wraps to $0000.
func (m *FlatMemory) LoadAddress(addr uint16) uint16 {
	return uint16(m.b[addr]) | uint16(m.b[addr+1])<<8
}

// StoreBytes stores multiple bytes starting at the requested address.
// Bytes that would extend past $FFFF are dropped.
func (m *FlatMemory) StoreBytes(addr uint16, b []byte) {
	copy(m.b[addr:], b)
}

// Clear zeroes the whole address space.
func (m *FlatMemory) Clear() {
	clear(m.b[:])
}
