// Copyright 2014-2018 Brett Vickers. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package asm

// An fstring is a substring of a source line that remembers where it
// starts, so that errors can point at the offending column.
type fstring struct {
	row    int    // 1-based line number of substring
	column int    // 0-based column of start of substring
	str    string // the actual substring of interest
	full   string // the full line as originally read
}

func newFstring(row int, str string) fstring {
	return fstring{row, 0, str, str}
}

func (l fstring) String() string {
	return l.str
}

func (l fstring) consume(n int) fstring {
	col := l.column
	for i := 0; i < n; i++ {
		if l.str[i] == '\t' {
			col += 8 - (col % 8)
		} else {
			col++
		}
	}
	return fstring{l.row, col, l.str[n:], l.full}
}

func (l fstring) trunc(n int) fstring {
	return fstring{l.row, l.column, l.str[:n], l.full}
}

func (l fstring) isEmpty() bool {
	return len(l.str) == 0
}

func (l fstring) startsWith(fn func(c byte) bool) bool {
	return len(l.str) > 0 && fn(l.str[0])
}

func (l fstring) startsWithChar(c byte) bool {
	return len(l.str) > 0 && l.str[0] == c
}

func (l fstring) consumeWhitespace() fstring {
	return l.consume(l.scanWhile(whitespace))
}

func (l fstring) scanWhile(fn func(c byte) bool) int {
	i := 0
	for ; i < len(l.str) && fn(l.str[i]); i++ {
	}
	return i
}

func (l fstring) consumeWhile(fn func(c byte) bool) (consumed, remain fstring) {
	i := l.scanWhile(fn)
	return l.trunc(i), l.consume(i)
}

func (l fstring) consumeUntilChar(c byte) (consumed, remain fstring) {
	i := 0
	for ; i < len(l.str) && l.str[i] != c; i++ {
	}
	return l.trunc(i), l.consume(i)
}

// Strip a trailing comment and any whitespace before it. Comment characters
// inside a quoted string are kept.
func (l fstring) stripTrailingComment() fstring {
	lastNonWS := 0
	for i := 0; i < len(l.str); i++ {
		if comment(l.str[i]) {
			break
		}
		if l.str[i] == '"' {
			i++
			for ; i < len(l.str) && l.str[i] != '"'; i++ {
				if l.str[i] == '\\' && i+1 < len(l.str) {
					i++
				}
			}
			lastNonWS = i + 1
			if i >= len(l.str) {
				lastNonWS = len(l.str)
				break
			}
			continue
		}
		if !whitespace(l.str[i]) {
			lastNonWS = i + 1
		}
	}
	return l.trunc(lastNonWS)
}

//
// character helper functions
//

func whitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\f'
}

func alpha(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func decimal(c byte) bool {
	return c >= '0' && c <= '9'
}

func hexadecimal(c byte) bool {
	return decimal(c) || (c >= 'A' && c <= 'F') || (c >= 'a' && c <= 'f')
}

func comment(c byte) bool {
	return c == ';'
}

func identifierStartChar(c byte) bool {
	return alpha(c) || c == '_'
}

func identifierChar(c byte) bool {
	return alpha(c) || decimal(c) || c == '_'
}

func numberChar(c byte) bool {
	return hexadecimal(c) || c == '$' || c == '%' || c == 'x' || c == 'X' || c == '_'
}
