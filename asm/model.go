// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

import (
	"fmt"

	"github.com/beevik/go65link/cpu"
)

// A Statement is a single parsed line of assembly: an instruction, a data
// directive, a label or a constant definition.
type Statement interface {
	// Pos returns the 1-based source line the statement was read from.
	Pos() int
}

// A MemRef is a memory operand. It holds either a literal address or the
// name of a symbol whose address is not known to the parser.
type MemRef struct {
	Name string // symbol name, empty for a literal address
	Addr uint16 // literal address, valid when Name is empty
}

// Literal returns true if the reference is a literal address.
func (r MemRef) Literal() bool {
	return r.Name == ""
}

func (r MemRef) String() string {
	if r.Literal() {
		return fmt.Sprintf("$%04X", r.Addr)
	}
	return r.Name
}

// Addr returns a literal memory reference.
func Addr(addr uint16) MemRef {
	return MemRef{Addr: addr}
}

// Sym returns a symbolic memory reference.
func Sym(name string) MemRef {
	return MemRef{Name: name}
}

// OperandKind describes the syntactic form of an instruction operand.
type OperandKind byte

// Operand forms
const (
	Implied OperandKind = iota
	Immediate
	Memory
)

// Index selects the index register applied to a memory operand.
type Index byte

// Index registers
const (
	IndexNone Index = iota
	IndexX
	IndexY
)

// An Operand represents the parameter of an instruction.
type Operand struct {
	Kind  OperandKind
	Value byte   // immediate value
	Index Index  // index register for memory operands
	Ref   MemRef // memory operand
}

func (o Operand) String() string {
	switch o.Kind {
	case Immediate:
		return fmt.Sprintf("#$%02X", o.Value)
	case Memory:
		switch o.Index {
		case IndexX:
			return o.Ref.String() + ",X"
		case IndexY:
			return o.Ref.String() + ",Y"
		}
		return o.Ref.String()
	}
	return ""
}

// An Instruction statement holds a mnemonic and its operand.
type Instruction struct {
	Line     int
	Mnemonic cpu.Mnemonic
	Operand  Operand
}

// Pos returns the source line of the instruction.
func (i *Instruction) Pos() int { return i.Line }

func (i *Instruction) String() string {
	if i.Operand.Kind == Implied {
		return i.Mnemonic.String()
	}
	return i.Mnemonic.String() + " " + i.Operand.String()
}

// DataKind identifies the contents of a data statement.
type DataKind byte

// Data kinds
const (
	DataString DataKind = iota // null-terminated string literal
	DataWord                   // 16-bit little-endian word
	DataBytes                  // literal bytes
)

// A Data statement places literal data into a section.
type Data struct {
	Line  int
	Kind  DataKind
	Str   string // DataString
	Ref   MemRef // DataWord
	Bytes []byte // DataBytes
}

// Pos returns the source line of the data statement.
func (d *Data) Pos() int { return d.Line }

// A Label marks the current position within a section.
type Label struct {
	Line int
	Name string
}

// Pos returns the source line of the label.
func (l *Label) Pos() int { return l.Line }

// A ConstLabel binds a name to a fixed address without taking up space.
type ConstLabel struct {
	Line int
	Name string
	Addr uint16
}

// Pos returns the source line of the constant.
func (c *ConstLabel) Pos() int { return c.Line }

// A Program holds every parsed statement, grouped by section. Sections keep
// the order in which they were first declared, and statements for a section
// declared more than once are appended.
type Program struct {
	names    []string
	sections map[string][]Statement
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{sections: make(map[string][]Statement)}
}

// Append adds statements to the end of the named section, creating the
// section if necessary.
func (p *Program) Append(section string, stmts ...Statement) {
	if _, ok := p.sections[section]; !ok {
		p.names = append(p.names, section)
		p.sections[section] = []Statement{}
	}
	p.sections[section] = append(p.sections[section], stmts...)
}

// AppendProgram adds every section of other to the end of p, in other's
// declaration order.
func (p *Program) AppendProgram(other *Program) {
	for _, name := range other.names {
		p.Append(name, other.sections[name]...)
	}
}

// Sections returns the section names in declaration order.
func (p *Program) Sections() []string {
	return p.names
}

// Statements returns the statements of the named section.
func (p *Program) Statements(section string) []Statement {
	return p.sections[section]
}
