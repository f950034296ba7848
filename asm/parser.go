// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package asm reads 65C02 assembly source and turns it into statements
// grouped by section, ready to be linked.
package asm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/beevik/go65link/cpu"
)

// Errors
var (
	ErrParse = errors.New("parse error")
)

// DefaultSection receives statements that appear before any section
// directive.
const DefaultSection = "text"

// Option type used by the Parse function.
type Option uint

// Options for the Parse function.
const (
	Verbose Option = 1 << iota // verbose output during parsing
)

type directiveData struct {
	fn func(p *parser, line fstring)
}

var directives = map[string]directiveData{
	".str":    {fn: (*parser).parseStr},
	".string": {fn: (*parser).parseStr},
	".word":   {fn: (*parser).parseWord},
	".dw":     {fn: (*parser).parseWord},
	".byte":   {fn: (*parser).parseByte},
	".db":     {fn: (*parser).parseByte},
}

// An asmerror is used to keep track of errors encountered while parsing.
type asmerror struct {
	line fstring // line causing the error
	msg  string  // error message
}

// The parser is a state object used while reading one source file.
type parser struct {
	prog     *Program   // statements parsed so far
	filename string     // name used in error messages
	section  string     // section currently receiving statements
	errors   []asmerror // errors encountered while parsing
	out      io.Writer  // output used for verbose output
	verbose  bool       // verbose output
}

// ParseFile reads a file containing assembly source and appends its
// statements to prog.
func ParseFile(path string, prog *Program, out io.Writer, options Option) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file, path, prog, out, options)
}

// Parse reads assembly source from r and appends its statements to prog.
// Statements for a section that prog already holds are appended to that
// section. Every syntax error found is returned as a message, and ErrParse
// is returned if there was at least one. prog is left untouched unless the
// whole source parses.
func Parse(r io.Reader, filename string, prog *Program, out io.Writer, options Option) ([]string, error) {
	if out == nil {
		out = os.Stdout
	}

	p := &parser{
		prog:     NewProgram(),
		filename: filename,
		section:  DefaultSection,
		out:      out,
		verbose:  (options & Verbose) != 0,
	}

	p.logSection("Parsing " + filename)

	scanner := bufio.NewScanner(r)
	row := 1
	for scanner.Scan() {
		line := newFstring(row, scanner.Text())
		p.parseLine(line.stripTrailingComment())
		row++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(p.errors) == 0 {
		prog.AppendProgram(p.prog)
		return nil, nil
	}

	errs := make([]string, 0, len(p.errors))
	for _, e := range p.errors {
		s := fmt.Sprintf("Syntax error in '%s' line %d, col %d: %s", p.filename, e.line.row, e.line.column+1, e.msg)
		errs = append(errs, s)
	}
	return errs, ErrParse
}

func (p *parser) emit(s Statement) {
	p.prog.Append(p.section, s)
}

// Parse a single line of assembly code.
func (p *parser) parseLine(line fstring) {
	line = line.consumeWhitespace()
	if line.isEmpty() {
		return
	}

	if line.startsWithChar('.') {
		p.parseDirective(line)
		return
	}

	if !line.startsWith(identifierStartChar) {
		p.addError(line, "unexpected '%s'", line.str)
		return
	}

	word, remain := line.consumeWhile(identifierChar)
	rest := remain.consumeWhitespace()

	switch {
	case remain.startsWithChar(':'):
		p.logLine(word, "label=%s", word.str)
		p.emit(&Label{Line: word.row, Name: word.str})
		p.parseLine(remain.consume(1))

	case rest.startsWithChar('='):
		p.parseConstant(word, rest.consume(1).consumeWhitespace())

	case strings.EqualFold(word.str, "section"):
		p.parseSection(rest)

	default:
		p.parseInstruction(word, remain)
	}
}

// Parse a section directive.
func (p *parser) parseSection(line fstring) {
	if line.startsWithChar('.') {
		line = line.consume(1)
	}
	name, remain := line.consumeWhile(identifierChar)
	if name.isEmpty() {
		p.addError(line, "expected section name")
		return
	}
	if !p.expectEnd(remain) {
		return
	}
	p.logLine(name, "section=%s", name.str)
	p.section = name.str
}

// Parse a "NAME = address" constant definition.
func (p *parser) parseConstant(name, line fstring) {
	v, remain, ok := p.parseNumber(line)
	if !ok || !p.expectEnd(remain) {
		return
	}
	if v > 0xffff {
		p.addError(line, "address too large")
		return
	}
	p.logLine(name, "const=%s val=$%04X", name.str, v)
	p.emit(&ConstLabel{Line: name.row, Name: name.str, Addr: uint16(v)})
}

// Parse a data directive.
func (p *parser) parseDirective(line fstring) {
	word, remain := line.consumeWhile(func(c byte) bool { return c == '.' || identifierChar(c) })
	d, ok := directives[strings.ToLower(word.str)]
	if !ok {
		p.addError(word, "invalid directive '%s'", word.str)
		return
	}
	if !remain.isEmpty() && !remain.startsWith(whitespace) {
		p.addError(remain, "invalid directive '%s%s'", word.str, remain.str)
		return
	}
	d.fn(p, remain.consumeWhitespace())
}

// Parse a .str directive.
func (p *parser) parseStr(line fstring) {
	if !line.startsWithChar('"') {
		p.addError(line, "expected string literal")
		return
	}

	end := 1
	for ; end < len(line.str) && line.str[end] != '"'; end++ {
		if line.str[end] == '\\' {
			end++
		}
	}
	if end >= len(line.str) {
		p.addError(line, "unterminated string literal")
		return
	}

	s, err := strconv.Unquote(line.str[:end+1])
	if err != nil {
		p.addError(line, "invalid string literal")
		return
	}
	if !p.expectEnd(line.consume(end + 1)) {
		return
	}

	p.logLine(line, "str len=%d", len(s))
	p.emit(&Data{Line: line.row, Kind: DataString, Str: s})
}

// Parse a .word directive. Each comma-separated operand becomes its own
// data statement.
func (p *parser) parseWord(line fstring) {
	for {
		ref, remain, ok := p.parseMemRef(line)
		if !ok {
			return
		}
		p.logLine(line, "word=%s", ref)
		p.emit(&Data{Line: line.row, Kind: DataWord, Ref: ref})

		remain = remain.consumeWhitespace()
		if !remain.startsWithChar(',') {
			p.expectEnd(remain)
			return
		}
		line = remain.consume(1).consumeWhitespace()
	}
}

// Parse a .byte directive.
func (p *parser) parseByte(line fstring) {
	d := &Data{Line: line.row, Kind: DataBytes}
	for {
		v, remain, ok := p.parseNumber(line)
		if !ok {
			return
		}
		if v > 0xff {
			p.addError(line, "byte value too large")
			return
		}
		d.Bytes = append(d.Bytes, byte(v))

		remain = remain.consumeWhitespace()
		if !remain.startsWithChar(',') {
			if p.expectEnd(remain) {
				p.logLine(line, "bytes=%d", len(d.Bytes))
				p.emit(d)
			}
			return
		}
		line = remain.consume(1).consumeWhitespace()
	}
}

// Parse a 65C02 mnemonic + operand.
func (p *parser) parseInstruction(word, remain fstring) {
	if !remain.isEmpty() && !remain.startsWith(whitespace) {
		p.addError(remain, "invalid opcode '%s%s'", word.str, remain.str)
		return
	}

	m, ok := cpu.ParseMnemonic(word.str)
	if !ok {
		p.addError(word, "invalid opcode '%s'", word.str)
		return
	}

	operand, ok := p.parseOperand(remain.consumeWhitespace())
	if !ok {
		return
	}

	inst := &Instruction{Line: word.row, Mnemonic: m, Operand: operand}
	p.logLine(word, "op=%s", inst)
	p.emit(inst)
}

// Parse the operand following a mnemonic.
func (p *parser) parseOperand(line fstring) (o Operand, ok bool) {
	switch {
	case line.isEmpty():
		return Operand{Kind: Implied}, true

	case strings.EqualFold(line.str, "a"):
		return Operand{Kind: Implied}, true

	case line.startsWithChar('#'):
		v, remain, ok := p.parseNumber(line.consume(1).consumeWhitespace())
		if !ok {
			return o, false
		}
		if v > 0xff {
			p.addError(line, "immediate value too large")
			return o, false
		}
		if !p.expectEnd(remain) {
			return o, false
		}
		return Operand{Kind: Immediate, Value: byte(v)}, true

	case line.startsWithChar('('):
		p.addError(line, "indirect addressing is not supported")
		return o, false
	}

	ref, remain, ok := p.parseMemRef(line)
	if !ok {
		return o, false
	}
	o = Operand{Kind: Memory, Ref: ref}

	remain = remain.consumeWhitespace()
	if remain.startsWithChar(',') || remain.startsWithChar(':') {
		var reg fstring
		reg, remain = remain.consume(1).consumeWhitespace().consumeWhile(identifierChar)
		switch strings.ToLower(reg.str) {
		case "x":
			o.Index = IndexX
		case "y":
			o.Index = IndexY
		default:
			p.addError(reg, "invalid index register '%s'", reg.str)
			return o, false
		}
	}

	if !p.expectEnd(remain) {
		return o, false
	}
	return o, true
}

// Parse a memory reference: either a symbol name or a literal address.
func (p *parser) parseMemRef(line fstring) (ref MemRef, remain fstring, ok bool) {
	if line.startsWith(identifierStartChar) {
		var name fstring
		name, remain = line.consumeWhile(identifierChar)
		return Sym(name.str), remain, true
	}

	v, remain, ok := p.parseNumber(line)
	if !ok {
		return ref, remain, false
	}
	if v > 0xffff {
		p.addError(line, "address too large")
		return ref, remain, false
	}
	return Addr(uint16(v)), remain, true
}

// Parse a numeric literal. Hexadecimal literals start with '$' or '0x',
// binary literals start with '%', and everything else is decimal.
func (p *parser) parseNumber(line fstring) (v uint32, remain fstring, ok bool) {
	tok, remain := line.consumeWhile(numberChar)
	if tok.isEmpty() {
		p.addError(line, "expected number")
		return 0, remain, false
	}

	s, base := tok.str, 10
	switch {
	case strings.HasPrefix(s, "$"):
		s, base = s[1:], 16
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		s, base = s[2:], 16
	case strings.HasPrefix(s, "%"):
		s, base = s[1:], 2
	}

	n, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), base, 32)
	if err != nil {
		p.addError(tok, "invalid number '%s'", tok.str)
		return 0, remain, false
	}
	return uint32(n), remain, true
}

// Report an error if anything other than whitespace remains on the line.
func (p *parser) expectEnd(remain fstring) bool {
	remain = remain.consumeWhitespace()
	if !remain.isEmpty() {
		p.addError(remain, "unexpected '%s'", remain.str)
		return false
	}
	return true
}

// Append an error message to the parser's error state.
func (p *parser) addError(l fstring, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, asmerror{l, msg})
	if p.verbose {
		fmt.Fprintf(p.out, "Syntax error in '%s' line %d, col %d: %s\n", p.filename, l.row, l.column+1, msg)
		fmt.Fprintln(p.out, l.full)
		fmt.Fprintln(p.out, strings.Repeat("-", l.column)+"^")
	}
}

// In verbose mode, log a string and its associated line of assembly code.
func (p *parser) logLine(line fstring, format string, args ...any) {
	if p.verbose {
		detail := fmt.Sprintf(format, args...)
		fmt.Fprintf(p.out, "%-3d %-3d | %-20s | %s\n", line.row, line.column+1, detail, line.full)
	}
}

// In verbose mode, log a section header to the output.
func (p *parser) logSection(name string) {
	if p.verbose {
		fmt.Fprintln(p.out, strings.Repeat("-", len(name)+6))
		fmt.Fprintf(p.out, "-- %s --\n", name)
		fmt.Fprintln(p.out, strings.Repeat("-", len(name)+6))
	}
}
