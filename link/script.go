// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package link

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ErrScript is returned when a link script cannot be parsed.
var ErrScript = errors.New("link script error")

// A Placement names a section and, optionally, the address it must be
// loaded at. A placement without a fixed address follows the previous
// section directly.
type Placement struct {
	Name  string
	Addr  uint16
	Fixed bool
}

func (p Placement) String() string {
	if p.Fixed {
		return fmt.Sprintf(".%s @$%04X", p.Name, p.Addr)
	}
	return "." + p.Name
}

// DefaultScript places the text section at $E000 followed by the data
// section.
var DefaultScript = []Placement{
	{Name: "text", Addr: 0xe000, Fixed: true},
	{Name: "data"},
}

// ParseScriptFile reads a link script from a file.
func ParseScriptFile(path string) ([]Placement, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseScript(file)
}

// ParseScript reads a link script. Each section is written as .name and
// may be followed by a load address, written @0xHHHH or @$HHHH. Text
// following a '#' or ';' is ignored.
func ParseScript(r io.Reader) ([]Placement, error) {
	var placements []Placement

	scanner := bufio.NewScanner(r)
	for row := 1; scanner.Scan(); row++ {
		line := scanner.Text()
		if i := strings.IndexAny(line, "#;"); i >= 0 {
			line = line[:i]
		}

		for _, tok := range strings.Fields(line) {
			switch {
			case len(tok) > 1 && tok[0] == '.' && validSectionName(tok[1:]):
				placements = append(placements, Placement{Name: tok[1:]})

			case tok[0] == '@' && len(placements) > 0 && !placements[len(placements)-1].Fixed:
				addr, ok := parseScriptAddr(tok[1:])
				if !ok {
					return nil, fmt.Errorf("%w: line %d: invalid address '%s'", ErrScript, row, tok)
				}
				p := &placements[len(placements)-1]
				p.Addr, p.Fixed = addr, true

			default:
				return nil, fmt.Errorf("%w: line %d: unexpected token: '%s'", ErrScript, row, tok)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return placements, nil
}

func validSectionName(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= 'a' && c <= 'z') && !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') && c != '_' {
			return false
		}
	}
	return true
}

func parseScriptAddr(s string) (uint16, bool) {
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		s = s[2:]
	case strings.HasPrefix(s, "$"):
		s = s[1:]
	default:
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}
