// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpu describes the 65C02 instruction set: its mnemonics, its
// addressing modes, and the table mapping each (mnemonic, mode) pair to an
// opcode byte.
package cpu

import "strings"

// A Mnemonic identifies an instruction by name, independent of its
// addressing mode.
type Mnemonic byte

const (
	ADC Mnemonic = iota // add with carry
	AND                 // and with A register
	ASL                 // arithmetic shift left
	BCC                 // branch if carry clear
	BCS                 // branch if carry set
	BEQ                 // branch if equal
	BIT                 // and with A register, no writeback
	BMI                 // branch if negative
	BNE                 // branch if not equal
	BPL                 // branch if positive
	BRA                 // branch always
	BRK                 // break
	BVC                 // branch if overflow clear
	BVS                 // branch if overflow set
	CLC                 // clear carry
	CLD                 // clear decimal flag
	CLI                 // enable interrupts
	CLV                 // clear overflow flag
	CMP                 // compare A register
	CPX                 // compare X register
	CPY                 // compare Y register
	DEC                 // decrement A register or memory
	DEX                 // decrement X register
	DEY                 // decrement Y register
	EOR                 // xor with A register
	INC                 // increment A register or memory
	INX                 // increment X register
	INY                 // increment Y register
	JMP                 // jump
	JSR                 // jump to subroutine
	LDA                 // load A register
	LDX                 // load X register
	LDY                 // load Y register
	LSR                 // logical shift right
	NOP                 // no operation
	ORA                 // or with A register
	PHA                 // push A register
	PHP                 // push status register
	PHX                 // push X register
	PHY                 // push Y register
	PLA                 // pull A register
	PLP                 // pull status register
	PLX                 // pull X register
	PLY                 // pull Y register
	RMB0                // clear memory bit 0
	RMB1                // clear memory bit 1
	RMB2                // clear memory bit 2
	RMB3                // clear memory bit 3
	RMB4                // clear memory bit 4
	RMB5                // clear memory bit 5
	RMB6                // clear memory bit 6
	RMB7                // clear memory bit 7
	ROL                 // rotate left
	ROR                 // rotate right
	RTI                 // return from interrupt
	RTS                 // return from subroutine
	SBC                 // subtract with carry
	SEC                 // set carry flag
	SED                 // set decimal flag
	SEI                 // disable interrupts
	SMB0                // set memory bit 0
	SMB1                // set memory bit 1
	SMB2                // set memory bit 2
	SMB3                // set memory bit 3
	SMB4                // set memory bit 4
	SMB5                // set memory bit 5
	SMB6                // set memory bit 6
	SMB7                // set memory bit 7
	STA                 // store A register
	STP                 // stop the clock
	STX                 // store X register
	STY                 // store Y register
	STZ                 // store zero
	TAX                 // transfer A -> X
	TAY                 // transfer A -> Y
	TRB                 // test and reset memory bits
	TSB                 // test and set memory bits
	TSX                 // transfer SP -> X
	TXA                 // transfer X -> A
	TXS                 // transfer X -> SP
	TYA                 // transfer Y -> A
	WAI                 // wait for interrupt

	numMnemonics
)

var mnemonicNames = [numMnemonics]string{
	"ADC", "AND", "ASL", "BCC", "BCS", "BEQ", "BIT", "BMI", "BNE", "BPL",
	"BRA", "BRK", "BVC", "BVS", "CLC", "CLD", "CLI", "CLV", "CMP", "CPX",
	"CPY", "DEC", "DEX", "DEY", "EOR", "INC", "INX", "INY", "JMP", "JSR",
	"LDA", "LDX", "LDY", "LSR", "NOP", "ORA", "PHA", "PHP", "PHX", "PHY",
	"PLA", "PLP", "PLX", "PLY",
	"RMB0", "RMB1", "RMB2", "RMB3", "RMB4", "RMB5", "RMB6", "RMB7",
	"ROL", "ROR", "RTI", "RTS", "SBC", "SEC", "SED", "SEI",
	"SMB0", "SMB1", "SMB2", "SMB3", "SMB4", "SMB5", "SMB6", "SMB7",
	"STA", "STP", "STX", "STY", "STZ", "TAX", "TAY", "TRB", "TSB", "TSX",
	"TXA", "TXS", "TYA", "WAI",
}

var mnemonicIndex map[string]Mnemonic

func init() {
	mnemonicIndex = make(map[string]Mnemonic, numMnemonics)
	for i, name := range mnemonicNames {
		mnemonicIndex[name] = Mnemonic(i)
	}
}

func (m Mnemonic) String() string {
	if m < numMnemonics {
		return mnemonicNames[m]
	}
	return "???"
}

// ParseMnemonic returns the mnemonic matching the name s. The match is not
// case sensitive.
func ParseMnemonic(s string) (Mnemonic, bool) {
	m, ok := mnemonicIndex[strings.ToUpper(s)]
	return m, ok
}

// Mode describes a memory addressing mode. A mode's value is the column it
// occupies in the opcode table.
type Mode byte

// All possible memory addressing modes
const (
	IMP Mode = iota // Implied or accumulator (no operand)
	IMM             // Immediate
	ZPG             // Zero Page
	ZPX             // Zero Page,X
	ZPY             // Zero Page,Y
	IDX             // (Zero Page,X)
	IDY             // (Zero Page),Y
	ZPI             // (Zero Page)
	ABS             // Absolute
	ABX             // Absolute,X
	ABY             // Absolute,Y
	IND             // (Absolute)
	AIX             // (Absolute,X)
	REL             // Relative

	numModes
)

var modeNames = [numModes]string{
	"IMP", "IMM", "ZPG", "ZPX", "ZPY", "IDX", "IDY", "ZPI",
	"ABS", "ABX", "ABY", "IND", "AIX", "REL",
}

func (m Mode) String() string {
	if m < numModes {
		return modeNames[m]
	}
	return "???"
}

// OperandLength returns the number of operand bytes that follow the opcode
// in the given addressing mode.
func (m Mode) OperandLength() int {
	switch m {
	case IMP:
		return 0
	case ABS, ABX, ABY, IND, AIX:
		return 2
	default:
		return 1
	}
}

// Opcode data for a (mnemonic, mode) pair
type opcodeData struct {
	sym    Mnemonic
	mode   Mode
	opcode byte
}

// All valid (mnemonic, mode) pairs
var data = []opcodeData{
	{LDA, IMM, 0xa9},
	{LDA, ZPG, 0xa5},
	{LDA, ZPX, 0xb5},
	{LDA, ABS, 0xad},
	{LDA, ABX, 0xbd},
	{LDA, ABY, 0xb9},
	{LDA, IDX, 0xa1},
	{LDA, IDY, 0xb1},
	{LDA, ZPI, 0xb2},

	{LDX, IMM, 0xa2},
	{LDX, ZPG, 0xa6},
	{LDX, ZPY, 0xb6},
	{LDX, ABS, 0xae},
	{LDX, ABY, 0xbe},

	{LDY, IMM, 0xa0},
	{LDY, ZPG, 0xa4},
	{LDY, ZPX, 0xb4},
	{LDY, ABS, 0xac},
	{LDY, ABX, 0xbc},

	{STA, ZPG, 0x85},
	{STA, ZPX, 0x95},
	{STA, ABS, 0x8d},
	{STA, ABX, 0x9d},
	{STA, ABY, 0x99},
	{STA, IDX, 0x81},
	{STA, IDY, 0x91},
	{STA, ZPI, 0x92},

	{STX, ZPG, 0x86},
	{STX, ZPY, 0x96},
	{STX, ABS, 0x8e},

	{STY, ZPG, 0x84},
	{STY, ZPX, 0x94},
	{STY, ABS, 0x8c},

	{STZ, ZPG, 0x64},
	{STZ, ZPX, 0x74},
	{STZ, ABS, 0x9c},
	{STZ, ABX, 0x9e},

	{ADC, IMM, 0x69},
	{ADC, ZPG, 0x65},
	{ADC, ZPX, 0x75},
	{ADC, ABS, 0x6d},
	{ADC, ABX, 0x7d},
	{ADC, ABY, 0x79},
	{ADC, IDX, 0x61},
	{ADC, IDY, 0x71},
	{ADC, ZPI, 0x72},

	{SBC, IMM, 0xe9},
	{SBC, ZPG, 0xe5},
	{SBC, ZPX, 0xf5},
	{SBC, ABS, 0xed},
	{SBC, ABX, 0xfd},
	{SBC, ABY, 0xf9},
	{SBC, IDX, 0xe1},
	{SBC, IDY, 0xf1},
	{SBC, ZPI, 0xf2},

	{CMP, IMM, 0xc9},
	{CMP, ZPG, 0xc5},
	{CMP, ZPX, 0xd5},
	{CMP, ABS, 0xcd},
	{CMP, ABX, 0xdd},
	{CMP, ABY, 0xd9},
	{CMP, IDX, 0xc1},
	{CMP, IDY, 0xd1},
	{CMP, ZPI, 0xd2},

	{CPX, IMM, 0xe0},
	{CPX, ZPG, 0xe4},
	{CPX, ABS, 0xec},

	{CPY, IMM, 0xc0},
	{CPY, ZPG, 0xc4},
	{CPY, ABS, 0xcc},

	{BIT, IMM, 0x89},
	{BIT, ZPG, 0x24},
	{BIT, ZPX, 0x34},
	{BIT, ABS, 0x2c},
	{BIT, ABX, 0x3c},

	{CLC, IMP, 0x18},
	{SEC, IMP, 0x38},
	{CLI, IMP, 0x58},
	{SEI, IMP, 0x78},
	{CLD, IMP, 0xd8},
	{SED, IMP, 0xf8},
	{CLV, IMP, 0xb8},

	{BCC, REL, 0x90},
	{BCS, REL, 0xb0},
	{BEQ, REL, 0xf0},
	{BNE, REL, 0xd0},
	{BMI, REL, 0x30},
	{BPL, REL, 0x10},
	{BVC, REL, 0x50},
	{BVS, REL, 0x70},
	{BRA, REL, 0x80},

	{BRK, IMP, 0x00},

	{AND, IMM, 0x29},
	{AND, ZPG, 0x25},
	{AND, ZPX, 0x35},
	{AND, ABS, 0x2d},
	{AND, ABX, 0x3d},
	{AND, ABY, 0x39},
	{AND, IDX, 0x21},
	{AND, IDY, 0x31},
	{AND, ZPI, 0x32},

	{ORA, IMM, 0x09},
	{ORA, ZPG, 0x05},
	{ORA, ZPX, 0x15},
	{ORA, ABS, 0x0d},
	{ORA, ABX, 0x1d},
	{ORA, ABY, 0x19},
	{ORA, IDX, 0x01},
	{ORA, IDY, 0x11},
	{ORA, ZPI, 0x12},

	{EOR, IMM, 0x49},
	{EOR, ZPG, 0x45},
	{EOR, ZPX, 0x55},
	{EOR, ABS, 0x4d},
	{EOR, ABX, 0x5d},
	{EOR, ABY, 0x59},
	{EOR, IDX, 0x41},
	{EOR, IDY, 0x51},
	{EOR, ZPI, 0x52},

	{INC, IMP, 0x1a},
	{INC, ZPG, 0xe6},
	{INC, ZPX, 0xf6},
	{INC, ABS, 0xee},
	{INC, ABX, 0xfe},

	{DEC, IMP, 0x3a},
	{DEC, ZPG, 0xc6},
	{DEC, ZPX, 0xd6},
	{DEC, ABS, 0xce},
	{DEC, ABX, 0xde},

	{INX, IMP, 0xe8},
	{INY, IMP, 0xc8},

	{DEX, IMP, 0xca},
	{DEY, IMP, 0x88},

	{JMP, ABS, 0x4c},
	{JMP, IND, 0x6c},
	{JMP, AIX, 0x7c},

	{JSR, ABS, 0x20},
	{RTS, IMP, 0x60},

	{RTI, IMP, 0x40},

	{NOP, IMP, 0xea},

	{TAX, IMP, 0xaa},
	{TXA, IMP, 0x8a},
	{TAY, IMP, 0xa8},
	{TYA, IMP, 0x98},
	{TXS, IMP, 0x9a},
	{TSX, IMP, 0xba},

	{TRB, ZPG, 0x14},
	{TRB, ABS, 0x1c},
	{TSB, ZPG, 0x04},
	{TSB, ABS, 0x0c},

	{PHA, IMP, 0x48},
	{PLA, IMP, 0x68},
	{PHP, IMP, 0x08},
	{PLP, IMP, 0x28},
	{PHX, IMP, 0xda},
	{PLX, IMP, 0xfa},
	{PHY, IMP, 0x5a},
	{PLY, IMP, 0x7a},

	{ASL, IMP, 0x0a},
	{ASL, ZPG, 0x06},
	{ASL, ZPX, 0x16},
	{ASL, ABS, 0x0e},
	{ASL, ABX, 0x1e},

	{LSR, IMP, 0x4a},
	{LSR, ZPG, 0x46},
	{LSR, ZPX, 0x56},
	{LSR, ABS, 0x4e},
	{LSR, ABX, 0x5e},

	{ROL, IMP, 0x2a},
	{ROL, ZPG, 0x26},
	{ROL, ZPX, 0x36},
	{ROL, ABS, 0x2e},
	{ROL, ABX, 0x3e},

	{ROR, IMP, 0x6a},
	{ROR, ZPG, 0x66},
	{ROR, ZPX, 0x76},
	{ROR, ABS, 0x6e},
	{ROR, ABX, 0x7e},

	{RMB0, ZPG, 0x07},
	{RMB1, ZPG, 0x17},
	{RMB2, ZPG, 0x27},
	{RMB3, ZPG, 0x37},
	{RMB4, ZPG, 0x47},
	{RMB5, ZPG, 0x57},
	{RMB6, ZPG, 0x67},
	{RMB7, ZPG, 0x77},

	{SMB0, ZPG, 0x87},
	{SMB1, ZPG, 0x97},
	{SMB2, ZPG, 0xa7},
	{SMB3, ZPG, 0xb7},
	{SMB4, ZPG, 0xc7},
	{SMB5, ZPG, 0xd7},
	{SMB6, ZPG, 0xe7},
	{SMB7, ZPG, 0xf7},

	{STP, IMP, 0xdb},
	{WAI, IMP, 0xcb},
}

// Opcodes that no mnemonic encodes to, with the number of bytes the CPU
// consumes when it executes them. Any opcode missing from both lists is a
// single-byte no-op.
var unusedData = []struct {
	opcode byte
	length byte
}{
	{0x02, 2}, {0x22, 2}, {0x42, 2}, {0x62, 2}, {0x82, 2}, {0xc2, 2}, {0xe2, 2},
	{0x44, 2}, {0x54, 2}, {0xd4, 2}, {0xf4, 2},
	{0x5c, 3}, {0xdc, 3}, {0xfc, 3},

	// BBRn and BBSn take a zero-page address and a branch offset.
	{0x0f, 3}, {0x1f, 3}, {0x2f, 3}, {0x3f, 3}, {0x4f, 3}, {0x5f, 3}, {0x6f, 3}, {0x7f, 3},
	{0x8f, 3}, {0x9f, 3}, {0xaf, 3}, {0xbf, 3}, {0xcf, 3}, {0xdf, 3}, {0xef, 3}, {0xff, 3},
}

// An Instruction describes a decoded opcode: its name, addressing mode and
// total length.
type Instruction struct {
	Name     string   // all-caps name of the instruction
	Mnemonic Mnemonic // mnemonic, valid only when Defined is true
	Mode     Mode     // addressing mode
	Opcode   byte     // hexadecimal opcode value
	Length   byte     // combined size of opcode and operand, in bytes
	Defined  bool     // false for opcodes no mnemonic encodes to
}

// An InstructionSet holds the opcode table in both directions: by
// (mnemonic, mode) for encoding and by opcode for decoding.
type InstructionSet struct {
	instructions [256]Instruction              // all instructions by opcode
	table        [numMnemonics][numModes]int16 // opcode, or -1 if unsupported
}

func newInstructionSet() *InstructionSet {
	set := &InstructionSet{}

	for m := range set.table {
		for mode := range set.table[m] {
			set.table[m][mode] = -1
		}
	}

	for _, d := range data {
		set.table[d.sym][d.mode] = int16(d.opcode)
		set.instructions[d.opcode] = Instruction{
			Name:     d.sym.String(),
			Mnemonic: d.sym,
			Mode:     d.mode,
			Opcode:   d.opcode,
			Length:   byte(1 + d.mode.OperandLength()),
			Defined:  true,
		}
	}

	for i := range set.instructions {
		inst := &set.instructions[i]
		if !inst.Defined {
			inst.Name = "???"
			inst.Mode = IMP
			inst.Opcode = byte(i)
			inst.Length = 1
		}
	}
	for _, u := range unusedData {
		set.instructions[u.opcode].Length = u.length
	}

	return set
}

var instructionSet = newInstructionSet()

// GetInstructionSet returns the 65C02 instruction set.
func GetInstructionSet() *InstructionSet {
	return instructionSet
}

// Lookup retrieves the instruction corresponding to the requested opcode.
func (s *InstructionSet) Lookup(opcode byte) *Instruction {
	return &s.instructions[opcode]
}

// Opcode returns the opcode stored in the table cell for the mnemonic and
// mode. The second result is false when the cell holds no opcode.
func (s *InstructionSet) Opcode(m Mnemonic, mode Mode) (byte, bool) {
	if m >= numMnemonics || mode >= numModes {
		return 0, false
	}
	op := s.table[m][mode]
	if op < 0 {
		return 0, false
	}
	return byte(op), true
}

// Encode returns the opcode for the mnemonic in the requested mode. If the
// mode is a plain zero-page or absolute mode and the mnemonic has no opcode
// for it, the relative mode is tried once instead. The mode actually used is
// returned alongside the opcode.
func (s *InstructionSet) Encode(m Mnemonic, mode Mode) (opcode byte, used Mode, ok bool) {
	if op, ok := s.Opcode(m, mode); ok {
		return op, mode, true
	}
	if mode == ZPG || mode == ABS {
		if op, ok := s.Opcode(m, REL); ok {
			return op, REL, true
		}
	}
	return 0, mode, false
}

// IsBranch returns true if the mnemonic is encoded only with relative
// addressing.
func (s *InstructionSet) IsBranch(m Mnemonic) bool {
	_, ok := s.Opcode(m, REL)
	return ok
}
