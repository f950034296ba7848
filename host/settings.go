// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/beevik/prefixtree/v2"
)

type settings struct {
	Verbose         bool   `doc:"verbose assembler and linker output"`
	Parallel        bool   `doc:"generate sections concurrently"`
	SymbolMap       bool   `doc:"write a .sym file next to each image"`
	DisasmLines     int    `doc:"default number of lines to disassemble"`
	MemDumpBytes    int    `doc:"default number of memory bytes to dump"`
	NextDisasmAddr  uint16 `doc:"address of next disassembly"`
	NextMemDumpAddr uint16 `doc:"address of next memory dump"`
}

func newSettings() *settings {
	return &settings{
		SymbolMap:    true,
		DisasmLines:  10,
		MemDumpBytes: 64,
	}
}

type settingsField struct {
	name  string
	index int
	kind  reflect.Kind
	typ   reflect.Type
	doc   string
}

var (
	settingsTree   = prefixtree.New[*settingsField]()
	settingsFields []settingsField
)

func init() {
	settingsType := reflect.TypeOf(settings{})
	settingsFields = make([]settingsField, settingsType.NumField())
	for i := 0; i < len(settingsFields); i++ {
		f := settingsType.Field(i)
		doc, _ := f.Tag.Lookup("doc")
		settingsFields[i] = settingsField{
			name:  f.Name,
			index: i,
			kind:  f.Type.Kind(),
			typ:   f.Type,
			doc:   doc,
		}
		settingsTree.Add(strings.ToLower(f.Name), &settingsFields[i])
	}
}

func (s *settings) Display(w io.Writer) {
	value := reflect.ValueOf(s).Elem()
	for i, f := range settingsFields {
		v := value.Field(i)
		var s string
		switch f.kind {
		case reflect.Uint16:
			s = fmt.Sprintf("    %-16s $%04X", f.name, uint16(v.Uint()))
		default:
			s = fmt.Sprintf("    %-16s %v", f.name, v)
		}
		fmt.Fprintf(w, "%-28s (%s)\n", s, f.doc)
	}
}

func (s *settings) Kind(key string) reflect.Kind {
	f, err := settingsTree.FindValue(strings.ToLower(key))
	if err != nil {
		return reflect.Invalid
	}
	return f.kind
}

// Set assigns a value to the setting whose name starts with key. A bool
// setting accepts only a bool; numeric settings accept any integer.
func (s *settings) Set(key string, value any) error {
	f, err := settingsTree.FindValue(strings.ToLower(key))
	if err != nil {
		return err
	}

	vIn := reflect.ValueOf(value)
	if (f.kind == reflect.Bool) != (vIn.Kind() == reflect.Bool) ||
		!vIn.Type().ConvertibleTo(f.typ) {
		return errors.New("invalid type")
	}

	vOut := reflect.ValueOf(s).Elem().Field(f.index)
	vOut.Set(vIn.Convert(f.typ))
	return nil
}
