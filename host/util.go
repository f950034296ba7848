// Copyright 2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package host

import (
	"fmt"
	"strconv"
	"strings"
)

func codeString(b []byte) string {
	switch len(b) {
	case 1:
		return fmt.Sprintf("%02X", b[0])
	case 2:
		return fmt.Sprintf("%02X %02X", b[0], b[1])
	case 3:
		return fmt.Sprintf("%02X %02X %02X", b[0], b[1], b[2])
	default:
		return ""
	}
}

func stringToBool(s string) (bool, error) {
	s = strings.ToLower(s)
	switch s {
	case "0", "false", "off":
		return false, nil
	case "1", "true", "on":
		return true, nil
	default:
		return false, fmt.Errorf("invalid bool value '%s'", s)
	}
}

var hexString = "0123456789ABCDEF"

func addrToBuf(addr uint16, b []byte) {
	b[0] = hexString[(addr>>12)&0xf]
	b[1] = hexString[(addr>>8)&0xf]
	b[2] = hexString[(addr>>4)&0xf]
	b[3] = hexString[addr&0xf]
}

func byteToBuf(v byte, b []byte) {
	b[0] = hexString[(v>>4)&0xf]
	b[1] = hexString[v&0xf]
}

func toPrintableChar(v byte) byte {
	switch {
	case v >= 32 && v < 127:
		return v
	default:
		return '.'
	}
}

// Parse a numeric literal written as $hex, 0xhex, %binary or decimal.
func parseNumber(s string) (int64, error) {
	base, num := 10, s
	switch {
	case strings.HasPrefix(s, "$"):
		base, num = 16, s[1:]
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		base, num = 16, s[2:]
	case strings.HasPrefix(s, "%"):
		base, num = 2, s[1:]
	}
	v, err := strconv.ParseInt(num, base, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number '%s'", s)
	}
	return v, nil
}

// Wrap text to a fixed width, indenting each line.
func indentWrap(indent int, s string) string {
	const width = 76
	pad := strings.Repeat(" ", indent)

	var b strings.Builder
	n := 0
	for _, w := range strings.Fields(s) {
		switch {
		case n == 0:
			b.WriteString(pad)
			n = indent
		case n+1+len(w) > width:
			b.WriteString("\n" + pad)
			n = indent
		default:
			b.WriteByte(' ')
			n++
		}
		b.WriteString(w)
		n += len(w)
	}
	return b.String()
}
