// Copyright 2014 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package disasm implements a 65C02 instruction set
// disassembler.
package disasm

import (
	"fmt"

	"github.com/beevik/go65link/cpu"
)

// Disassembler formatting for addressing modes
var modeFormat = []string{
	"%s",      // IMP
	"#$%s",    // IMM
	"$%s",     // ZPG
	"$%s,X",   // ZPX
	"$%s,Y",   // ZPY
	"($%s,X)", // IDX
	"($%s),Y", // IDY
	"($%s)",   // ZPI
	"$%s",     // ABS
	"$%s,X",   // ABX
	"$%s,Y",   // ABY
	"($%s)",   // IND
	"($%s,X)", // AIX
	"$%s",     // REL
}

var hex = "0123456789ABCDEF"

// Return a hexadecimal string representation of the byte slice.
func hexString(b []byte) string {
	hexlen := len(b) * 2
	hexbuf := make([]byte, hexlen)
	j := hexlen - 1
	for _, n := range b {
		hexbuf[j] = hex[n&0xf]
		hexbuf[j-1] = hex[n>>4]
		j -= 2
	}
	return string(hexbuf)
}

// A Namer returns the symbol name bound to an address, if there is one.
type Namer func(addr uint16) (string, bool)

// Disassemble the machine code in memory 'm' at address 'addr'. Return a
// 'line' string representing the disassembled instruction and a 'next'
// address that starts the following line of machine code.
func Disassemble(m cpu.Memory, addr uint16) (line string, next uint16) {
	return DisassembleNamed(m, addr, nil)
}

// DisassembleNamed works like Disassemble, but appends the symbol name of
// an absolute or branch target when 'names' knows one.
func DisassembleNamed(m cpu.Memory, addr uint16, names Namer) (line string, next uint16) {
	opcode := m.LoadByte(addr)
	set := cpu.GetInstructionSet()
	inst := set.Lookup(opcode)
	operand := make([]byte, int(inst.Length)-1)
	m.LoadBytes(addr+1, operand)

	var target uint16
	switch {
	case !inst.Defined:
		operand = operand[:0]
	case inst.Mode == cpu.REL:
		// Convert relative offset to absolute address.
		target = addr + uint16(inst.Length) + uint16(int8(operand[0]))
		operand = []byte{byte(target), byte(target >> 8)}
	case len(operand) == 2:
		target = uint16(operand[0]) | uint16(operand[1])<<8
	}

	format := "%s " + modeFormat[inst.Mode]
	line = fmt.Sprintf(format, inst.Name, hexString(operand))
	if len(operand) == 2 && names != nil {
		if name, ok := names(target); ok {
			line = fmt.Sprintf("%-12s ; %s", line, name)
		}
	}
	if inst.Mode == cpu.IMP {
		line = inst.Name
	}
	next = addr + uint16(inst.Length)
	return
}
