// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package link turns the sections of a parsed 65C02 program into a single
// flat binary image. Linking runs in stages: constant collection, code
// generation, layout, relocation and image assembly.
package link

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"runtime"
	"strings"

	"github.com/beevik/go65link/asm"
	"golang.org/x/sync/errgroup"
)

// ErrLink is returned when linking produced diagnostics.
var ErrLink = errors.New("link error")

// Option type used by the Link function.
type Option uint

// Options for the Link function.
const (
	Verbose  Option = 1 << iota // verbose output during linking
	Parallel                    // generate sections concurrently
)

// An Extent records where a linked section was placed.
type Extent struct {
	Name string
	Addr uint16
	Size int
}

// An Image is the result of linking a program.
type Image struct {
	Code     []byte       // flat image, starting at Origin
	Origin   uint16       // load address of the first byte of Code
	Sections []Extent     // placed sections, in link script order
	Symbols  *SymbolTable // constants, registers and placed labels
	Errors   []string     // diagnostics produced while linking
}

// WriteTo writes the raw image bytes to w.
func (img *Image) WriteTo(w io.Writer) (n int64, err error) {
	nn, err := w.Write(img.Code)
	return int64(nn), err
}

// CRC returns the CRC-32 checksum of the image bytes.
func (img *Image) CRC() uint32 {
	return crc32.ChecksumIEEE(img.Code)
}

// The linker is a state object used during a single call to Link.
type linker struct {
	prog     *asm.Program
	script   []Placement
	out      io.Writer
	verbose  bool
	parallel bool
	errors   []string
}

// A placed section is a generated section together with its load address.
type placed struct {
	sec   *Section
	base  uint16
	fixed bool
}

// Link generates code for every section of prog and lays the sections out
// according to the placements in script. The image is returned even when
// linking fails, in which case the error is ErrLink and the image's Errors
// field holds the diagnostics.
func Link(prog *asm.Program, script []Placement, out io.Writer, options Option) (*Image, error) {
	l := &linker{
		prog:     prog,
		script:   script,
		out:      out,
		verbose:  (options & Verbose) != 0,
		parallel: (options & Parallel) != 0,
	}

	constants := l.collectConstants()
	sections := l.generate(constants.Find)
	layout, global := l.layout(sections, constants)
	l.relocate(layout, global.Find)
	img := l.assemble(layout)
	img.Symbols = global
	img.Errors = l.errors

	if len(l.errors) > 0 {
		return img, ErrLink
	}
	return img, nil
}

func (l *linker) addError(err error) {
	l.errors = append(l.errors, err.Error())
	if l.verbose {
		fmt.Fprintf(l.out, "Error: %v\n", err)
	}
}

func (l *linker) addErrors(errs []error) {
	for _, err := range errs {
		l.addError(err)
	}
}

// Stage 1: gather every constant definition into a table seeded with the
// pseudo-registers.
func (l *linker) collectConstants() *SymbolTable {
	l.logSection("Collecting constants")

	constants := NewRegisterTable()
	for _, name := range l.prog.Sections() {
		for _, stmt := range l.prog.Statements(name) {
			if c, ok := stmt.(*asm.ConstLabel); ok {
				constants.Insert(c.Name, c.Addr)
				l.log("%-16s = $%04X", c.Name, c.Addr)
			}
		}
	}
	return constants
}

// Stage 2: generate code for each section. Only constants are visible to
// the generator, so every label reference becomes a relocation.
func (l *linker) generate(lookup Lookup) map[string]*Section {
	l.logSection("Generating code")

	names := l.prog.Sections()
	secs := make([]*Section, len(names))
	errs := make([][]error, len(names))

	gen := func(i int) {
		sec := NewSection(names[i])
		for _, stmt := range l.prog.Statements(names[i]) {
			if err := sec.Generate(stmt, lookup); err != nil {
				errs[i] = append(errs[i], err)
			}
		}
		secs[i] = sec
	}

	if l.parallel {
		// Diagnostics land in errs, so the group only bounds concurrency
		// and gen never fails.
		var g errgroup.Group
		g.SetLimit(runtime.GOMAXPROCS(0))
		for i := range names {
			g.Go(func() error {
				gen(i)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i := range names {
			gen(i)
		}
	}

	sections := make(map[string]*Section, len(names))
	for i, sec := range secs {
		l.addErrors(errs[i])
		sections[sec.Name] = sec
		l.log("%-16s %5d bytes, %d labels, %d relocations", sec.Name, sec.Len(), sec.labels.Len(), len(sec.relocs))
		l.logBytes(sec.code)
	}
	return sections
}

// Stage 3: assign a load address to every placed section and merge the
// section labels into a global table.
func (l *linker) layout(sections map[string]*Section, constants *SymbolTable) ([]placed, *SymbolTable) {
	l.logSection("Laying out sections")

	global := constants.Clone()

	if len(l.script) == 0 {
		l.addError(errors.New("link script places no sections"))
	}

	var layout []placed
	seen := make(map[string]bool)
	cursor := 0
	for i, p := range l.script {
		switch {
		case p.Fixed:
			cursor = int(p.Addr)
		case i == 0:
			l.addError(fmt.Errorf("section %s is placed first but has no load address", p.Name))
		}

		if seen[p.Name] {
			l.addError(fmt.Errorf("section %s is placed more than once", p.Name))
			continue
		}
		seen[p.Name] = true

		sec, ok := sections[p.Name]
		if !ok {
			sec = NewSection(p.Name)
		}
		if cursor+sec.Len() > 0x10000 {
			l.addError(fmt.Errorf("section %s at $%04X with %d bytes runs past $FFFF", p.Name, cursor, sec.Len()))
		}

		// Generation already encoded the constant's value for these names.
		for _, name := range sec.labels.Names() {
			if _, ok := constants.Find(name); ok {
				l.addError(fmt.Errorf("label %s in section %s shadows a constant", name, p.Name))
			}
		}

		base := uint16(cursor)
		global.Merge(sec.labels, base)
		layout = append(layout, placed{sec: sec, base: base, fixed: p.Fixed})
		l.log("%-16s $%04X-$%04X", p.Name, cursor, cursor+sec.Len())
		cursor += sec.Len()
	}

	for _, name := range l.prog.Sections() {
		if !seen[name] {
			l.addError(fmt.Errorf("section %s is not placed by the link script", name))
		}
	}
	return layout, global
}

// Stage 4: patch every relocation now that all addresses are known.
func (l *linker) relocate(layout []placed, lookup Lookup) {
	l.logSection("Relocating")

	for _, p := range layout {
		l.addErrors(p.sec.Resolve(p.base, lookup))
		if l.verbose {
			for _, r := range p.sec.relocs {
				addr := int(p.base) + r.Offset
				n := 2
				if r.Kind == Rel8 {
					n = 1
				}
				l.log("%04X  %-5s %-16s %s", addr, r.Kind, r.name(), byteString(p.sec.code[r.Offset:r.Offset+n]))
			}
		}
	}
}

// Stage 5: concatenate the sections into a flat image, padding with zeros
// up to each fixed load address.
func (l *linker) assemble(layout []placed) *Image {
	l.logSection("Building image")

	img := &Image{}
	if len(layout) == 0 {
		return img
	}

	img.Origin = layout[0].base
	cursor := int(img.Origin)
	for _, p := range layout {
		if p.fixed {
			switch {
			case int(p.base) > cursor:
				img.Code = append(img.Code, make([]byte, int(p.base)-cursor)...)
				cursor = int(p.base)
			case int(p.base) < cursor:
				l.addError(fmt.Errorf("section %s load address $%04X overlaps previous section ending at $%04X",
					p.sec.Name, p.base, cursor))
			}
		}

		img.Code = append(img.Code, p.sec.code...)
		img.Sections = append(img.Sections, Extent{Name: p.sec.Name, Addr: p.base, Size: p.sec.Len()})
		cursor += p.sec.Len()
	}

	l.log("origin $%04X, %d bytes, crc %08x", img.Origin, len(img.Code), img.CRC())
	return img
}

// In verbose mode, log a string.
func (l *linker) log(format string, args ...any) {
	if l.verbose {
		fmt.Fprintf(l.out, format, args...)
		fmt.Fprintln(l.out, "")
	}
}

// In verbose mode, log a hex dump of generated code, 16 bytes per row.
func (l *linker) logBytes(b []byte) {
	if l.verbose {
		for i := 0; i < len(b); i += 16 {
			fmt.Fprintf(l.out, "  %04X  %s\n", i, byteString(b[i:min(i+16, len(b))]))
		}
	}
}

// In verbose mode, log a section header to the output.
func (l *linker) logSection(name string) {
	if l.verbose {
		fmt.Fprintln(l.out, strings.Repeat("-", len(name)+6))
		fmt.Fprintf(l.out, "-- %s --\n", name)
		fmt.Fprintln(l.out, strings.Repeat("-", len(name)+6))
	}
}
