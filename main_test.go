// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"flag"
	"io"
	"strings"
	"testing"

	"github.com/beevik/go65link/host"
)

func settingsAfter(t *testing.T, args ...string) string {
	t.Helper()
	fs := flag.NewFlagSet("go65link", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	defineFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}

	h := host.New()
	if err := applyFlags(fs, h); err != nil {
		t.Fatal(err)
	}
	var out bytes.Buffer
	h.RunCommands(strings.NewReader("set"), &out, false)
	return out.String()
}

func TestApplyFlags(t *testing.T) {
	var tests = []struct {
		args     []string
		expected []string
	}{
		{nil, []string{"Verbose          false", "Parallel         false", "SymbolMap        true"}},
		{[]string{"-j", "-v"}, []string{"Verbose          true", "Parallel         true", "SymbolMap        true"}},
		{[]string{"-m=false", "-o", "x.bin"}, []string{"Parallel         false", "SymbolMap        false"}},
	}

	for _, test := range tests {
		out := settingsAfter(t, test.args...)
		for _, e := range test.expected {
			if !strings.Contains(out, e) {
				t.Errorf("args %v: output is missing %q\n%s", test.args, e, out)
			}
		}
	}
}
