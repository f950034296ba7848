// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"fmt"

	"github.com/beevik/go65link/asm"
	"github.com/beevik/go65link/cpu"
)

// maxSectionSize is the largest amount of code a section may hold.
const maxSectionSize = 0x10000

// RelocKind identifies how a relocation patches its placeholder.
type RelocKind byte

// Relocation kinds
const (
	Abs16 RelocKind = iota // 16-bit little-endian absolute address
	Rel8                   // signed 8-bit branch displacement
)

func (k RelocKind) String() string {
	switch k {
	case Abs16:
		return "abs16"
	case Rel8:
		return "rel8"
	default:
		return "???"
	}
}

// A Relocation records a placeholder in a section's code that must be
// patched once the section's load address is known.
type Relocation struct {
	Kind   RelocKind
	Offset int    // section offset of the first placeholder byte
	Symbol string // referenced symbol, empty for a literal target
	Target uint16 // literal target address, valid when Fixed is true
	Fixed  bool   // target is known without a symbol lookup
	Line   int    // source line of the referencing statement
}

func (r *Relocation) name() string {
	if r.Symbol != "" {
		return r.Symbol
	}
	return fmt.Sprintf("$%04X", r.Target)
}

// An Error describes a problem found while generating or linking a section.
type Error struct {
	Section string
	Line    int // source line, 0 when the problem has none
	Msg     string
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("section '%s' line %d: %s", e.Section, e.Line, e.Msg)
	}
	return fmt.Sprintf("section '%s': %s", e.Section, e.Msg)
}

// A Section is the generated code of one named section. Code starts at
// offset zero; labels are section-relative until the linker merges them.
type Section struct {
	Name   string
	code   []byte
	labels *SymbolTable
	relocs []Relocation
	set    *cpu.InstructionSet
}

// NewSection creates an empty section.
func NewSection(name string) *Section {
	return &Section{
		Name:   name,
		labels: NewSymbolTable(),
		set:    cpu.GetInstructionSet(),
	}
}

// Len returns the number of code bytes in the section.
func (s *Section) Len() int {
	return len(s.code)
}

// Code returns the section's code bytes.
func (s *Section) Code() []byte {
	return s.code
}

// Labels returns the section's labels, keyed by section-relative offset.
func (s *Section) Labels() *SymbolTable {
	return s.labels
}

// Relocations returns the section's pending relocations in the order they
// were recorded.
func (s *Section) Relocations() []Relocation {
	return s.relocs
}

func (s *Section) errorf(line int, format string, args ...any) error {
	return &Error{Section: s.Name, Line: line, Msg: fmt.Sprintf(format, args...)}
}

// Generate appends the code for a single statement. Symbols are resolved
// through lookup, which should only know addresses that cannot move during
// layout. Anything it cannot resolve becomes a relocation. Constant
// definitions are ignored.
func (s *Section) Generate(stmt asm.Statement, lookup Lookup) error {
	switch st := stmt.(type) {
	case *asm.Instruction:
		return s.genInstruction(st, lookup)
	case *asm.Data:
		return s.genData(st, lookup)
	case *asm.Label:
		if len(s.code) >= maxSectionSize {
			return s.errorf(st.Line, "label '%s' lies beyond the 64K address space", st.Name)
		}
		s.labels.Insert(st.Name, uint16(len(s.code)))
	case *asm.ConstLabel:
	}
	return nil
}

// Return the zero-page and absolute modes matching an index register.
func memoryModes(index asm.Index) (zp, abs cpu.Mode) {
	switch index {
	case asm.IndexX:
		return cpu.ZPX, cpu.ABX
	case asm.IndexY:
		return cpu.ZPY, cpu.ABY
	default:
		return cpu.ZPG, cpu.ABS
	}
}

func (s *Section) genInstruction(inst *asm.Instruction, lookup Lookup) error {
	var (
		modes    []cpu.Mode
		value    uint16
		resolved bool
		ref      asm.MemRef
	)

	switch inst.Operand.Kind {
	case asm.Implied:
		modes = []cpu.Mode{cpu.IMP}
	case asm.Immediate:
		modes = []cpu.Mode{cpu.IMM}
		value, resolved = uint16(inst.Operand.Value), true
	case asm.Memory:
		ref = inst.Operand.Ref
		if ref.Literal() {
			value, resolved = ref.Addr, true
		} else {
			value, resolved = lookup(ref.Name)
		}

		// Only an operand already known to fit in a byte may use the
		// zero-page form. Unresolved symbols commit to the wide form.
		zp, abs := memoryModes(inst.Operand.Index)
		if resolved && value < 0x100 {
			modes = []cpu.Mode{zp, abs}
		} else {
			modes = []cpu.Mode{abs}
		}
	}

	var (
		opcode byte
		used   cpu.Mode
		ok     bool
	)
	for _, m := range modes {
		if opcode, used, ok = s.set.Encode(inst.Mnemonic, m); ok {
			break
		}
	}
	if !ok {
		return s.errorf(inst.Line, "invalid addressing mode %s for mnemonic %s", modes[0], inst.Mnemonic)
	}

	start := len(s.code)
	code := []byte{opcode}
	var reloc *Relocation

	switch {
	case used == cpu.REL:
		code = append(code, 0)
		reloc = &Relocation{Kind: Rel8, Offset: start + 1, Symbol: ref.Name, Line: inst.Line}
		if resolved {
			reloc.Target, reloc.Fixed = value, true
		}
	case used.OperandLength() == 1:
		code = append(code, byte(value))
	case used.OperandLength() == 2:
		code = append(code, toBytes(2, int(value))...)
		if !resolved {
			reloc = &Relocation{Kind: Abs16, Offset: start + 1, Symbol: ref.Name, Line: inst.Line}
		}
	}

	return s.emit(inst.Line, code, reloc)
}

func (s *Section) genData(d *asm.Data, lookup Lookup) error {
	switch d.Kind {
	case asm.DataString:
		code := append([]byte(d.Str), 0)
		return s.emit(d.Line, code, nil)
	case asm.DataBytes:
		return s.emit(d.Line, d.Bytes, nil)
	case asm.DataWord:
		if d.Ref.Literal() {
			return s.emit(d.Line, toBytes(2, int(d.Ref.Addr)), nil)
		}
		if value, ok := lookup(d.Ref.Name); ok {
			return s.emit(d.Line, toBytes(2, int(value)), nil)
		}
		reloc := &Relocation{Kind: Abs16, Offset: len(s.code), Symbol: d.Ref.Name, Line: d.Line}
		return s.emit(d.Line, []byte{0, 0}, reloc)
	}
	return nil
}

func (s *Section) emit(line int, code []byte, reloc *Relocation) error {
	if len(s.code)+len(code) > maxSectionSize {
		return s.errorf(line, "section exceeds the 64K address space")
	}
	s.code = append(s.code, code...)
	if reloc != nil {
		s.relocs = append(s.relocs, *reloc)
	}
	return nil
}

// Resolve patches every relocation of a section loaded at base, looking up
// symbols through lookup. Placeholders are overwritten rather than combined,
// so resolving the same section twice yields the same bytes. Each unresolved
// symbol and each branch out of range is reported. An out-of-range branch
// still receives its truncated displacement.
func (s *Section) Resolve(base uint16, lookup Lookup) []error {
	var errs []error
	for i := range s.relocs {
		r := &s.relocs[i]

		target, ok := r.Target, r.Fixed
		if !ok {
			target, ok = lookup(r.Symbol)
		}
		if !ok {
			errs = append(errs, s.errorf(r.Line, "undefined reference to symbol %s", r.Symbol))
			continue
		}

		switch r.Kind {
		case Abs16:
			copy(s.code[r.Offset:], toBytes(2, int(target)))
		case Rel8:
			delta := int(target) - (int(base) + r.Offset + 1)
			if delta < -128 || delta > 127 {
				errs = append(errs, s.errorf(r.Line, "cannot always branch to symbol %s, distance too far", r.name()))
			}
			s.code[r.Offset] = byte(delta)
		}
	}
	return errs
}
