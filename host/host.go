// Copyright 2018 Brett Vickers.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package host provides an interactive shell around the assembler and
// linker. Within the host it is possible to assemble source files into a
// program, load a link script, link the program into a flat image, inspect
// the image's symbols and sections, disassemble or dump it, and write it to
// disk along with its symbol map.
package host

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/beevik/cmd"
	"github.com/beevik/go65link/asm"
	"github.com/beevik/go65link/cpu"
	"github.com/beevik/go65link/disasm"
	"github.com/beevik/go65link/link"
)

// Errors
var (
	ErrNoImage = errors.New("no linked image")
	errQuit    = errors.New("exiting program")
)

// A selection is a command looked up from an input line, along with its
// arguments.
type selection struct {
	name    string
	args    []string
	handler func(*Host, selection) error
}

// A Host holds the program being assembled, the link script used to lay it
// out, and the most recently linked image.
type Host struct {
	input       *bufio.Scanner
	output      *bufio.Writer
	interactive bool
	prog        *asm.Program
	files       []string
	script      []link.Placement
	image       *link.Image
	symbols     *link.SymbolMap
	mem         *cpu.FlatMemory
	lastCmd     *selection
	settings    *settings
}

// New creates a new host with an empty program and the default link
// script.
func New() *Host {
	return &Host{
		output:   bufio.NewWriter(os.Stdout),
		prog:     asm.NewProgram(),
		script:   link.DefaultScript,
		mem:      cpu.NewFlatMemory(),
		settings: newSettings(),
	}
}

// SetOutput redirects the host's output to w.
func (h *Host) SetOutput(w io.Writer) {
	h.output = bufio.NewWriter(w)
}

// Set assigns a configuration variable, as the set command does.
func (h *Host) Set(name string, value any) error {
	return h.settings.Set(name, value)
}

// RunCommands accepts host commands from a reader and outputs the results
// to a writer. If the commands are interactive, a prompt is displayed while
// the host waits for the the next command to be entered.
func (h *Host) RunCommands(r io.Reader, w io.Writer, interactive bool) {
	h.input = bufio.NewScanner(r)
	h.output = bufio.NewWriter(w)
	h.interactive = interactive

	if interactive {
		h.println()
	}

	for {
		h.prompt()

		line, err := h.getLine()
		if err != nil {
			break
		}

		var sel selection
		if line != "" {
			n, args, err := cmds.Lookup(line)
			switch {
			case errors.Is(err, cmd.ErrNotFound):
				h.println("Command not found.")
				continue
			case errors.Is(err, cmd.ErrAmbiguous):
				h.println("Command is ambiguous.")
				continue
			case err != nil:
				h.printf("ERROR: %v.\n", err)
				continue
			}

			c, ok := n.(*cmd.Command)
			if !ok {
				h.displayCommands()
				continue
			}
			sel = selection{
				name:    c.Name,
				args:    args,
				handler: c.Data.(func(*Host, selection) error),
			}
		} else if h.lastCmd != nil {
			sel = *h.lastCmd
		} else {
			continue
		}
		h.lastCmd = &sel

		err = sel.handler(h, sel)
		if err != nil {
			break
		}
	}
	h.flush()
}

func (h *Host) printf(format string, args ...any) {
	fmt.Fprintf(h.output, format, args...)
	h.flush()
}

func (h *Host) println(args ...any) {
	fmt.Fprintln(h.output, args...)
	h.flush()
}

func (h *Host) flush() {
	h.output.Flush()
}

func (h *Host) getLine() (string, error) {
	if h.input.Scan() {
		return strings.TrimSpace(h.input.Text()), nil
	}
	if h.input.Err() != nil {
		return "", h.input.Err()
	}
	return "", io.EOF
}

func (h *Host) prompt() {
	if h.interactive {
		h.printf("* ")
	}
}

// Assemble parses a source file and appends its statements to the
// program. Syntax errors are displayed, and asm.ErrParse is returned if
// there were any.
func (h *Host) Assemble(filename string) error {
	var options asm.Option
	if h.settings.Verbose {
		options |= asm.Verbose
	}

	errs, err := asm.ParseFile(filename, h.prog, h.output, options)
	h.flush()
	if err != nil {
		h.printf("Failed to assemble '%s'.\n", filepath.Base(filename))
		if len(errs) == 0 {
			h.printf("%v\n", err)
		}
		for _, e := range errs {
			h.println(e)
		}
		return err
	}

	h.files = append(h.files, filename)
	h.image, h.symbols = nil, nil
	h.printf("Assembled '%s'.\n", filepath.Base(filename))
	return nil
}

// LoadScript reads the link script used by subsequent links.
func (h *Host) LoadScript(filename string) error {
	script, err := link.ParseScriptFile(filename)
	if err != nil {
		h.printf("Failed to load link script '%s': %v\n", filepath.Base(filename), err)
		return err
	}

	h.script = script
	h.image, h.symbols = nil, nil
	h.printf("Loaded link script '%s' (%d sections).\n", filepath.Base(filename), len(script))
	return nil
}

// Link links the assembled program. Diagnostics are displayed, and
// link.ErrLink is returned if there were any. A successfully linked image
// is loaded into the host's memory.
func (h *Host) Link() error {
	var options link.Option
	if h.settings.Verbose {
		options |= link.Verbose
	}
	if h.settings.Parallel {
		options |= link.Parallel
	}

	img, err := link.Link(h.prog, h.script, h.output, options)
	h.flush()
	if err != nil {
		h.println("Link failed.")
		for _, e := range img.Errors {
			h.println(e)
		}
		h.image, h.symbols = nil, nil
		return err
	}

	h.image = img
	h.symbols = link.NewSymbolMap(img)
	h.mem.Clear()
	h.mem.StoreBytes(img.Origin, img.Code)
	h.settings.NextDisasmAddr = img.Origin
	h.settings.NextMemDumpAddr = img.Origin

	if len(img.Code) == 0 {
		h.println("Linked an empty image.")
	} else {
		h.printf("Linked %d bytes at $%04X-$%04X.\n", len(img.Code), img.Origin, int(img.Origin)+len(img.Code)-1)
	}
	return nil
}

// WriteImage writes the linked image to a binary file and, when the
// SymbolMap setting is on, its symbol map to a .sym file beside it.
func (h *Host) WriteImage(filename string) error {
	if h.image == nil {
		h.println("No linked image. Use the link command first.")
		return ErrNoImage
	}

	if err := writeFile(filename, h.image); err != nil {
		h.printf("Failed to write '%s': %v\n", filepath.Base(filename), err)
		return err
	}
	h.printf("Wrote %d bytes to '%s'.\n", len(h.image.Code), filepath.Base(filename))

	if h.settings.SymbolMap {
		ext := filepath.Ext(filename)
		symFilename := filename[:len(filename)-len(ext)] + ".sym"
		if err := writeFile(symFilename, h.symbols); err != nil {
			h.printf("Failed to write '%s': %v\n", filepath.Base(symFilename), err)
			return err
		}
		h.printf("Wrote symbol map to '%s'.\n", filepath.Base(symFilename))
	}
	return nil
}

func writeFile(filename string, w io.WriterTo) error {
	file, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	_, err = w.WriteTo(file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return err
}

// Reset discards the program, the link script and the linked image.
func (h *Host) Reset() {
	h.prog = asm.NewProgram()
	h.files = nil
	h.script = link.DefaultScript
	h.image, h.symbols = nil, nil
	h.mem.Clear()
	h.settings.NextDisasmAddr = 0
	h.settings.NextMemDumpAddr = 0
}

func (h *Host) cmdAssemble(c selection) error {
	if len(c.args) < 1 {
		h.displayHelpText(c.name)
		return nil
	}

	for _, filename := range c.args {
		if filepath.Ext(filename) == "" {
			filename += ".asm"
		}
		if h.Assemble(filename) != nil {
			break
		}
	}
	return nil
}

func (h *Host) cmdScript(c selection) error {
	if len(c.args) != 1 {
		h.displayHelpText(c.name)
		return nil
	}

	h.LoadScript(c.args[0])
	return nil
}

func (h *Host) cmdLink(c selection) error {
	if len(h.files) == 0 {
		h.println("Nothing has been assembled.")
		return nil
	}

	h.Link()
	return nil
}

func (h *Host) cmdSymbols(c selection) error {
	if h.image == nil {
		h.println("No linked image.")
		return nil
	}

	var prefix string
	if len(c.args) > 0 {
		prefix = c.args[0]
	}

	n := 0
	for _, name := range h.image.Symbols.Names() {
		if strings.HasPrefix(name, prefix) {
			addr, _ := h.image.Symbols.Find(name)
			h.printf("%-16s $%04X\n", name, addr)
			n++
		}
	}
	if n == 0 {
		h.println("No matching symbols.")
	}
	return nil
}

func (h *Host) cmdSections(c selection) error {
	if h.image == nil {
		h.println("No linked image.")
		return nil
	}

	h.println("Section          Addr   Size")
	h.println("---------------- -----  -----")
	for _, s := range h.image.Sections {
		h.printf("%-16s $%04X  %5d\n", s.Name, s.Addr, s.Size)
	}
	h.printf("Image CRC: %08x\n", h.image.CRC())
	return nil
}

func (h *Host) cmdDisassemble(c selection) error {
	if h.image == nil {
		h.println("No linked image.")
		return nil
	}

	addr := h.settings.NextDisasmAddr
	if len(c.args) > 0 && c.args[0] != "$" {
		a, err := h.parseAddr(c.args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		addr = a
	}

	lines := h.settings.DisasmLines
	if len(c.args) > 1 {
		l, err := parseNumber(c.args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		lines = int(l)
	}

	for i := 0; i < lines; i++ {
		d, next := h.disassemble(addr)
		h.println(d)
		addr = next
	}

	h.settings.NextDisasmAddr = addr
	h.lastCmd.args = []string{"$", fmt.Sprintf("%d", lines)}
	return nil
}

func (h *Host) cmdDump(c selection) error {
	if h.image == nil {
		h.println("No linked image.")
		return nil
	}

	addr := h.settings.NextMemDumpAddr
	if len(c.args) > 0 && c.args[0] != "$" {
		a, err := h.parseAddr(c.args[0])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		addr = a
	}

	bytes := uint16(h.settings.MemDumpBytes)
	if len(c.args) > 1 {
		b, err := parseNumber(c.args[1])
		if err != nil {
			h.printf("%v\n", err)
			return nil
		}
		bytes = uint16(b)
	}

	h.dumpMemory(addr, bytes)

	h.settings.NextMemDumpAddr = addr + bytes
	h.lastCmd.args = []string{"$", fmt.Sprintf("%d", bytes)}
	return nil
}

func (h *Host) cmdWrite(c selection) error {
	if len(c.args) != 1 {
		h.displayHelpText(c.name)
		return nil
	}

	h.WriteImage(c.args[0])
	return nil
}

func (h *Host) cmdReset(c selection) error {
	h.Reset()
	h.println("Program discarded.")
	return nil
}

func (h *Host) cmdHelp(c selection) error {
	if len(c.args) == 0 {
		h.displayCommands()
		return nil
	}

	n, _, err := cmds.Lookup(strings.Join(c.args, " "))
	if err != nil {
		h.printf("%v\n", err)
		return nil
	}
	command, ok := n.(*cmd.Command)
	if !ok {
		h.displayCommands()
		return nil
	}

	d := descriptors[command.Name]
	if d.Usage != "" {
		h.printf("Syntax: %s\n\n", d.Usage)
	}
	switch {
	case d.Description != "":
		h.printf("Description:\n%s\n\n", indentWrap(3, d.Description))
	case d.Brief != "":
		h.printf("Description:\n%s.\n\n", indentWrap(3, d.Brief))
	}
	return nil
}

func (h *Host) cmdQuit(c selection) error {
	return errQuit
}

func (h *Host) cmdSet(c selection) error {
	switch len(c.args) {
	case 0:
		h.println("Variables:")
		h.settings.Display(h.output)
		h.flush()

	case 1:
		h.displayHelpText(c.name)

	default:
		key, value := c.args[0], strings.Join(c.args[1:], " ")

		var err error
		switch h.settings.Kind(key) {
		case reflect.Invalid:
			err = fmt.Errorf("setting '%s' not found", key)
		case reflect.Bool:
			var v bool
			if v, err = stringToBool(value); err == nil {
				err = h.settings.Set(key, v)
			}
		case reflect.Uint16:
			var v uint16
			if v, err = h.parseAddr(value); err == nil {
				err = h.settings.Set(key, v)
			}
		default:
			var v int64
			if v, err = parseNumber(value); err == nil {
				err = h.settings.Set(key, v)
			}
		}

		if err == nil {
			h.println("Setting updated.")
		} else {
			h.printf("%v\n", err)
		}
	}
	return nil
}

// Parse an address argument. Numbers may be written in any of the
// assembler's notations, and a symbol of the linked image may be used with
// an optional +n or -n offset.
func (h *Host) parseAddr(s string) (uint16, error) {
	if s == "" {
		return 0, errors.New("missing address")
	}
	if c := s[0]; c == '$' || c == '%' || (c >= '0' && c <= '9') {
		v, err := parseNumber(s)
		if err != nil {
			return 0, err
		}
		if v < 0 || v > 0xffff {
			return 0, fmt.Errorf("address '%s' out of range", s)
		}
		return uint16(v), nil
	}

	name, offset := s, int64(0)
	if i := strings.IndexAny(s, "+-"); i > 0 {
		v, err := parseNumber(s[i+1:])
		if err != nil {
			return 0, err
		}
		name, offset = s[:i], v
		if s[i] == '-' {
			offset = -v
		}
	}

	if h.image == nil {
		return 0, fmt.Errorf("symbol '%s' not found", name)
	}
	addr, ok := h.image.Symbols.Find(name)
	if !ok {
		return 0, fmt.Errorf("symbol '%s' not found", name)
	}
	return uint16(int64(addr) + offset), nil
}

func (h *Host) disassemble(addr uint16) (str string, next uint16) {
	var line string
	line, next = disasm.DisassembleNamed(h.mem, addr, h.symbols.Search)

	l := next - addr
	b := make([]byte, l)
	h.mem.LoadBytes(addr, b)

	str = fmt.Sprintf("%04X-   %-8s    %s", addr, codeString(b[:l]), line)
	if name, ok := h.symbols.Search(addr); ok {
		str = fmt.Sprintf("%-16s %s", name+":", str)
	} else {
		str = fmt.Sprintf("%-16s %s", "", str)
	}
	return str, next
}

func (h *Host) dumpMemory(addr0, bytes uint16) {
	if bytes == 0 {
		return
	}

	addr1 := addr0 + bytes - 1
	if addr1 < addr0 {
		addr1 = 0xffff
	}

	buf := []byte("    -" + strings.Repeat(" ", 35))

	// Don't align display for short dumps.
	if addr1-addr0 < 8 {
		addrToBuf(addr0, buf[0:4])
		for a, c1, c2 := addr0, 6, 32; a <= addr1 && a >= addr0; a, c1, c2 = a+1, c1+3, c2+1 {
			m := h.mem.LoadByte(a)
			byteToBuf(m, buf[c1:c1+2])
			buf[c2] = toPrintableChar(m)
		}
		h.println(strings.TrimRight(string(buf), " "))
		return
	}

	// Align addr0 and addr1 to 8-byte boundaries.
	start := uint32(addr0) & 0xfff8
	stop := min((uint32(addr1)+8)&0xffff8, 0x10000)

	a := uint16(start)
	for r := start; r < stop; r += 8 {
		addrToBuf(a, buf[0:4])
		for c1, c2 := 6, 32; c1 < 29; c1, c2, a = c1+3, c2+1, a+1 {
			if a >= addr0 && a <= addr1 {
				m := h.mem.LoadByte(a)
				byteToBuf(m, buf[c1:c1+2])
				buf[c2] = toPrintableChar(m)
			} else {
				buf[c1] = ' '
				buf[c1+1] = ' '
				buf[c2] = ' '
			}
		}
		h.println(strings.TrimRight(string(buf), " "))
	}
}

func (h *Host) displayHelpText(name string) {
	if d, ok := descriptors[name]; ok && d.Usage != "" {
		h.printf("Syntax: %s\n", d.Usage)
	} else {
		h.println("<no help text>")
	}
}

func (h *Host) displayCommands() {
	h.println("go65link commands:")
	for _, name := range commandList {
		if d := descriptors[name]; d.Brief != "" {
			h.printf("    %-15s  %s\n", d.Name, d.Brief)
		}
	}
}
