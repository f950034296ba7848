// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"fmt"
	"maps"
	"slices"
)

// NumRegisters is the number of zero-page pseudo-registers (r0, r1, ...)
// seeded into a register table.
const NumRegisters = 32

// A Lookup resolves a symbol name to an address. The second result is false
// when the name is unknown.
type Lookup func(name string) (uint16, bool)

// A SymbolTable maps symbol names to 16-bit addresses.
type SymbolTable struct {
	symbols map[string]uint16
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{symbols: make(map[string]uint16)}
}

// NewRegisterTable creates a symbol table holding the pseudo-registers r0
// through r31, bound to zero-page addresses 0 through 31.
func NewRegisterTable() *SymbolTable {
	t := NewSymbolTable()
	for i := 0; i < NumRegisters; i++ {
		t.Insert(fmt.Sprintf("r%d", i), uint16(i))
	}
	return t
}

// Insert binds name to addr, replacing any previous binding.
func (t *SymbolTable) Insert(name string, addr uint16) {
	t.symbols[name] = addr
}

// Find returns the address bound to name.
func (t *SymbolTable) Find(name string) (uint16, bool) {
	addr, ok := t.symbols[name]
	return addr, ok
}

// Merge inserts every symbol of other into t, adding offset to each
// address.
func (t *SymbolTable) Merge(other *SymbolTable, offset uint16) {
	for name, addr := range other.symbols {
		t.symbols[name] = addr + offset
	}
}

// Clone returns a copy of the table.
func (t *SymbolTable) Clone() *SymbolTable {
	return &SymbolTable{symbols: maps.Clone(t.symbols)}
}

// Len returns the number of symbols in the table.
func (t *SymbolTable) Len() int {
	return len(t.symbols)
}

// Names returns all symbol names in sorted order.
func (t *SymbolTable) Names() []string {
	return slices.Sorted(maps.Keys(t.symbols))
}
