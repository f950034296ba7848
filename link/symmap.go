// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"cmp"
	"encoding/json"
	"io"
	"slices"
	"sort"
)

// A SymbolMap describes a linked image: where it loads, where each section
// landed and the address of every symbol. It is stored alongside the image
// as JSON.
type SymbolMap struct {
	Origin   uint16
	Size     int
	CRC      uint32
	Sections []Extent
	Symbols  []Symbol // sorted by address, then name
}

// A Symbol binds a name to an address.
type Symbol struct {
	Name    string
	Address uint16
}

// NewSymbolMap builds the symbol map of a linked image.
func NewSymbolMap(img *Image) *SymbolMap {
	m := &SymbolMap{
		Origin:   img.Origin,
		Size:     len(img.Code),
		CRC:      img.CRC(),
		Sections: img.Sections,
	}
	if img.Symbols != nil {
		for _, name := range img.Symbols.Names() {
			addr, _ := img.Symbols.Find(name)
			m.Symbols = append(m.Symbols, Symbol{Name: name, Address: addr})
		}
	}
	slices.SortStableFunc(m.Symbols, func(a, b Symbol) int {
		return cmp.Compare(a.Address, b.Address)
	})
	return m
}

// Search returns the name of the first symbol, in name order, bound to the
// requested address.
func (m *SymbolMap) Search(addr uint16) (name string, ok bool) {
	i := sort.Search(len(m.Symbols), func(i int) bool {
		return m.Symbols[i].Address >= addr
	})
	if i < len(m.Symbols) && m.Symbols[i].Address == addr {
		return m.Symbols[i].Name, true
	}
	return "", false
}

// ReadFrom reads the contents of an exported symbol map file.
func (m *SymbolMap) ReadFrom(r io.Reader) (n int64, err error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}

	err = json.Unmarshal(b, m)
	if err != nil {
		return 0, err
	}
	return int64(len(b)), nil
}

// WriteTo writes the contents of the symbol map to an output stream.
func (m *SymbolMap) WriteTo(w io.Writer) (n int64, err error) {
	b, err := json.MarshalIndent(*m, "", "  ")
	if err != nil {
		return 0, err
	}

	nn, err := w.Write(b)
	return int64(nn), err
}
