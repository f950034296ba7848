// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"bytes"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/beevik/go65link/asm"
)

var textAt1000 = []Placement{{Name: "text", Addr: 0x1000, Fixed: true}}

func parseProgram(t *testing.T, code string) *asm.Program {
	t.Helper()
	prog := asm.NewProgram()
	errs, err := asm.Parse(strings.NewReader(code), "test", prog, io.Discard, 0)
	if err != nil {
		t.Fatalf("parse failed: %v", errs)
	}
	return prog
}

func linkSource(t *testing.T, code string, script []Placement, options Option) (*Image, error) {
	t.Helper()
	return Link(parseProgram(t, code), script, io.Discard, options)
}

func hexString(b []byte) string {
	s := make([]byte, len(b)*2)
	for i, j := 0, 0; i < len(b); i, j = i+1, j+2 {
		s[j+0] = hex[b[i]>>4]
		s[j+1] = hex[b[i]&0x0f]
	}
	return string(s)
}

func checkLink(t *testing.T, code string, script []Placement, expected string) *Image {
	t.Helper()
	img, err := linkSource(t, code, script, 0)
	if err != nil {
		t.Errorf("link failed: %v", img.Errors)
		return img
	}
	if s := hexString(img.Code); s != expected {
		t.Error("code doesn't match expected")
		t.Errorf("got: %s\n", s)
		t.Errorf("exp: %s\n", expected)
	}
	return img
}

func checkLinkError(t *testing.T, code string, script []Placement, errString string) *Image {
	t.Helper()
	img, err := linkSource(t, code, script, 0)
	if err != ErrLink {
		t.Errorf("Expected link error on %s, got %v\n", code, err)
		return img
	}
	if !slices.Contains(img.Errors, errString) {
		t.Errorf("Expected '%s', got %q\n", errString, img.Errors)
	}
	return img
}

func TestForwardBranch(t *testing.T) {
	code := `
	bne target
	nop
	nop
	nop
	nop
	nop
	nop
	nop
	nop
target:
	rts`

	checkLink(t, code, textAt1000, "D008EAEAEAEAEAEAEAEA60")
}

func TestBackwardBranch(t *testing.T) {
	code := `
loop:
	dex
	bne loop
	bra loop`

	checkLink(t, code, textAt1000, "CAD0FD80FB")
}

func TestBranchToLiteral(t *testing.T) {
	checkLink(t, "\tbeq $1010", textAt1000, "F00E")
}

func TestBranchOverflow(t *testing.T) {
	code := "\tbne far\n" + strings.Repeat("\tnop\n", 200) + "far:\n\trts"

	img := checkLinkError(t, code, textAt1000,
		"section 'text' line 1: cannot always branch to symbol far, distance too far")
	if img.Code[1] != 200 {
		t.Errorf("truncated displacement: exp $C8, got $%02X", img.Code[1])
	}
	if len(img.Code) != 203 {
		t.Errorf("image should still be built, got %d bytes", len(img.Code))
	}
}

func TestBackwardBranchOverflow(t *testing.T) {
	// 126 bytes back is the furthest reachable target.
	code := "back:\n" + strings.Repeat("\tnop\n", 126) + "\tbeq back"
	checkLink(t, code, textAt1000, strings.Repeat("EA", 126)+"F080")

	code = "back:\n" + strings.Repeat("\tnop\n", 128) + "\tbeq back"
	img := checkLinkError(t, code, textAt1000,
		"section 'text' line 130: cannot always branch to symbol back, distance too far")
	if img.Code[129] != 0x7e {
		t.Errorf("truncated displacement: exp $7E, got $%02X", img.Code[129])
	}
}

func TestZeroPageWidth(t *testing.T) {
	code := `
	lda $10
	lda $1234
	lda $10,x
	lda $10,y
	ldx $10,y
	stx $20:y
	jmp $10
	lda r3
	lda later
later:
	rts`

	checkLink(t, code, textAt1000,
		"A510"+
			"AD3412"+
			"B510"+
			"B91000"+
			"B610"+
			"9620"+
			"4C1000"+
			"A503"+
			"AD1610"+
			"60")
}

func TestConstantsDoNotShift(t *testing.T) {
	code := `
section data
	.byte 1, 2
PORT = $D000
ZP = $42
section text
	lda PORT
	sta ZP
	.word PORT
	jmp data_end
section data
data_end:`

	script := []Placement{
		{Name: "text", Addr: 0xe000, Fixed: true},
		{Name: "data"},
	}
	img := checkLink(t, code, script, "AD00D08542"+"00D0"+"4C0CE0"+"0102")

	if addr, _ := img.Symbols.Find("PORT"); addr != 0xd000 {
		t.Errorf("PORT moved to $%04X", addr)
	}
	if addr, _ := img.Symbols.Find("data_end"); addr != 0xe00c {
		t.Errorf("data_end: exp $E00C, got $%04X", addr)
	}
}

func TestCrossSection(t *testing.T) {
	script := []Placement{
		{Name: "text", Addr: 0xe000, Fixed: true},
		{Name: "lib", Addr: 0xe100, Fixed: true},
	}
	sources := []string{
		`
section text
start:
	jsr sub
	jmp start
section lib
sub:
	rts`,
		`
section lib
sub:
	rts
section text
start:
	jsr sub
	jmp start`,
	}

	var images [][]byte
	for _, src := range sources {
		for _, opt := range []Option{0, Parallel} {
			img, err := linkSource(t, src, script, opt)
			if err != nil {
				t.Fatalf("link failed: %v", img.Errors)
			}
			images = append(images, img.Code)
		}
	}

	exp := append([]byte{0x20, 0x00, 0xe1, 0x4c, 0x00, 0xe0}, make([]byte, 0x100-6)...)
	exp = append(exp, 0x60)
	for i, code := range images {
		if !bytes.Equal(code, exp) {
			t.Errorf("image %d doesn't match: got %s", i, hexString(code))
		}
	}
}

func TestVectorPadding(t *testing.T) {
	code := `
section text
reset:
	nop
section vectors
	.word reset`

	script := []Placement{
		{Name: "text", Addr: 0xe000, Fixed: true},
		{Name: "vectors", Addr: 0xfffa, Fixed: true},
	}
	img, err := linkSource(t, code, script, 0)
	if err != nil {
		t.Fatalf("link failed: %v", img.Errors)
	}

	if len(img.Code) != 0xfffa+2-0xe000 {
		t.Fatalf("image length: exp %d, got %d", 0xfffa+2-0xe000, len(img.Code))
	}
	if img.Origin != 0xe000 {
		t.Errorf("origin: exp $E000, got $%04X", img.Origin)
	}
	if img.Code[0] != 0xea {
		t.Errorf("first byte: exp $EA, got $%02X", img.Code[0])
	}
	for i := 1; i < 0xfffa-0xe000; i++ {
		if img.Code[i] != 0 {
			t.Fatalf("padding byte at $%04X is $%02X", 0xe000+i, img.Code[i])
		}
	}
	if tail := img.Code[len(img.Code)-2:]; tail[0] != 0x00 || tail[1] != 0xe0 {
		t.Errorf("vector: exp 00E0, got %s", hexString(tail))
	}
	exp := []Extent{{"text", 0xe000, 1}, {"vectors", 0xfffa, 2}}
	if !slices.Equal(img.Sections, exp) {
		t.Errorf("sections: got %v", img.Sections)
	}
}

func TestMultipleReferences(t *testing.T) {
	code := `
	jmp fwd
	jsr fwd
	.word fwd
	bne fwd
fwd:
	rts`

	checkLink(t, code, textAt1000, "4C0A10200A100A10D00060")
}

func TestResolveIdempotent(t *testing.T) {
	prog := parseProgram(t, `
	jmp target
	beq target
	.word target
target:
	nop`)

	sec := NewSection("text")
	for _, stmt := range prog.Statements("text") {
		if err := sec.Generate(stmt, NewRegisterTable().Find); err != nil {
			t.Fatal(err)
		}
	}
	if n := len(sec.Relocations()); n != 3 {
		t.Fatalf("relocations: exp 3, got %d", n)
	}

	global := NewSymbolTable()
	global.Merge(sec.Labels(), 0x2000)

	if errs := sec.Resolve(0x2000, global.Find); errs != nil {
		t.Fatal(errs)
	}
	first := slices.Clone(sec.Code())
	if errs := sec.Resolve(0x2000, global.Find); errs != nil {
		t.Fatal(errs)
	}
	if !bytes.Equal(first, sec.Code()) {
		t.Errorf("second resolve changed code: %s -> %s", hexString(first), hexString(sec.Code()))
	}
	if s := hexString(first); s != "4C0720F00207200720EA" {
		t.Errorf("got %s", s)
	}
}

func TestGenerationErrors(t *testing.T) {
	checkLinkError(t, "\tjmp #1", textAt1000, "section 'text' line 1: invalid addressing mode IMM for mnemonic JMP")
	checkLinkError(t, "\tstx $1234,x", textAt1000, "section 'text' line 1: invalid addressing mode ABX for mnemonic STX")
	checkLinkError(t, "\tsty $12,y", textAt1000, "section 'text' line 1: invalid addressing mode ZPY for mnemonic STY")
	checkLinkError(t, "\tjmp nowhere", textAt1000, "section 'text' line 1: undefined reference to symbol nowhere")
	checkLinkError(t, "\t.word nowhere", textAt1000, "section 'text' line 1: undefined reference to symbol nowhere")
	checkLinkError(t, "\tnop\n\tbne nowhere", textAt1000, "section 'text' line 2: undefined reference to symbol nowhere")

	img := checkLinkError(t, "\tnop\n\tjmp #1\n\tnop", textAt1000,
		"section 'text' line 2: invalid addressing mode IMM for mnemonic JMP")
	if s := hexString(img.Code); s != "EAEA" {
		t.Errorf("failed statement should emit nothing, got %s", s)
	}
}

func TestLayoutErrors(t *testing.T) {
	checkLinkError(t, "section extra\n\tnop", textAt1000, "section extra is not placed by the link script")
	checkLinkError(t, "\tnop", []Placement{{Name: "text"}}, "section text is placed first but has no load address")
	checkLinkError(t, "\tnop", nil, "link script places no sections")
	checkLinkError(t, "\tnop\n\tnop", []Placement{{Name: "text", Addr: 0xffff, Fixed: true}},
		"section text at $FFFF with 2 bytes runs past $FFFF")

	code := `
section text
	.byte 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15
section data
	.byte 1`
	script := []Placement{
		{Name: "text", Addr: 0xe000, Fixed: true},
		{Name: "data", Addr: 0xe008, Fixed: true},
	}
	checkLinkError(t, code, script, "section data load address $E008 overlaps previous section ending at $E010")

	script = []Placement{
		{Name: "text", Addr: 0xe000, Fixed: true},
		{Name: "text"},
	}
	checkLinkError(t, "\tnop", script, "section text is placed more than once")
}

func TestLabelShadowsConstant(t *testing.T) {
	code := `
limit = $0010
	lda limit
limit:
	rts
r3:
	nop`
	img := checkLinkError(t, code, textAt1000, "label limit in section text shadows a constant")
	if !slices.Contains(img.Errors, "label r3 in section text shadows a constant") {
		t.Errorf("register shadowing not reported: %q", img.Errors)
	}
}

func TestEmptyPlacedSection(t *testing.T) {
	script := []Placement{
		{Name: "text", Addr: 0x1000, Fixed: true},
		{Name: "bss"},
		{Name: "data"},
	}
	img := checkLink(t, "\tnop\nsection data\n\t.str \"ok\"", script, "EA6F6B00")

	exp := []Extent{{"text", 0x1000, 1}, {"bss", 0x1001, 0}, {"data", 0x1001, 3}}
	if !slices.Equal(img.Sections, exp) {
		t.Errorf("sections: got %v", img.Sections)
	}
}

func TestParallelMatchesSequential(t *testing.T) {
	var sb strings.Builder
	var script []Placement
	for i := 0; i < 16; i++ {
		name := "s" + string(rune('a'+i))
		sb.WriteString("section " + name + "\n")
		sb.WriteString(name + "_entry:\n")
		sb.WriteString("\tlda #1\n\tjsr sa_entry\n\tbne " + name + "_entry\n")
		script = append(script, Placement{Name: name})
	}
	script[0].Addr, script[0].Fixed = 0x0800, true

	seq, err := linkSource(t, sb.String(), script, 0)
	if err != nil {
		t.Fatalf("link failed: %v", seq.Errors)
	}
	par, err := linkSource(t, sb.String(), script, Parallel)
	if err != nil {
		t.Fatalf("link failed: %v", par.Errors)
	}
	if !bytes.Equal(seq.Code, par.Code) {
		t.Error("parallel generation produced a different image")
	}
}

func TestVerboseOutput(t *testing.T) {
	var out strings.Builder
	prog := parseProgram(t, "start:\n\tjmp start")
	if _, err := Link(prog, textAt1000, &out, Verbose); err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"-- Generating code --", "-- Relocating --", "1001  abs16 start"} {
		if !strings.Contains(out.String(), s) {
			t.Errorf("verbose output is missing %q", s)
		}
	}
}
