// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"bytes"
	"errors"
	"slices"
	"strings"
	"testing"
)

func TestParseScript(t *testing.T) {
	script := `
	.text @0xe000
	.data            ; follows text
	# interrupt vectors
	.vectors @$FFFA`

	got, err := ParseScript(strings.NewReader(script))
	if err != nil {
		t.Fatal(err)
	}
	exp := []Placement{
		{Name: "text", Addr: 0xe000, Fixed: true},
		{Name: "data"},
		{Name: "vectors", Addr: 0xfffa, Fixed: true},
	}
	if !slices.Equal(got, exp) {
		t.Errorf("exp %v, got %v", exp, got)
	}
}

func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		script string
		msg    string
	}{
		{"@0x0001\n.text\n.data", "line 1: unexpected token: '@0x0001'"},
		{".text @0xe000 @0xf000", "line 1: unexpected token: '@0xf000'"},
		{".text\ndata", "line 2: unexpected token: 'data'"},
		{".te-xt", "line 1: unexpected token: '.te-xt'"},
		{".text @0x10000", "line 1: invalid address '@0x10000'"},
		{".text @e000", "line 1: invalid address '@e000'"},
	}

	for _, tt := range tests {
		_, err := ParseScript(strings.NewReader(tt.script))
		if !errors.Is(err, ErrScript) {
			t.Errorf("%q: expected script error, got %v", tt.script, err)
			continue
		}
		if !strings.HasSuffix(err.Error(), tt.msg) {
			t.Errorf("%q: expected error ending in %q, got %q", tt.script, tt.msg, err)
		}
	}
}

func TestSymbolMap(t *testing.T) {
	code := `
IO = $D000
section text
reset:
	lda IO
loop:
	jmp loop`

	img, err := linkSource(t, code, DefaultScript, 0)
	if err != nil {
		t.Fatalf("link failed: %v", img.Errors)
	}

	m := NewSymbolMap(img)
	if m.Origin != 0xe000 || m.Size != 6 || m.CRC != img.CRC() {
		t.Errorf("header: got origin $%04X size %d crc %08x", m.Origin, m.Size, m.CRC)
	}
	if name, ok := m.Search(0xe003); !ok || name != "loop" {
		t.Errorf("search $E003: got %q %v", name, ok)
	}
	if name, ok := m.Search(0x0005); !ok || name != "r5" {
		t.Errorf("search $0005: got %q %v", name, ok)
	}
	if _, ok := m.Search(0xe001); ok {
		t.Error("search $E001: expected no symbol")
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	var m2 SymbolMap
	if _, err := m2.ReadFrom(&buf); err != nil {
		t.Fatal(err)
	}
	if name, ok := m2.Search(0xd000); !ok || name != "IO" {
		t.Errorf("reloaded map: got %q %v", name, ok)
	}
	if !slices.Equal(m2.Sections, img.Sections) {
		t.Errorf("reloaded sections: got %v", m2.Sections)
	}
}
