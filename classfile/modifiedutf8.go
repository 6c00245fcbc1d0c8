// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package classfile

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// decodeModifiedUTF8 decodes a CPUtf8 entry's byte payload. The class-file
// format encodes strings in a variant of UTF-8 ("Modified UTF-8"): NUL is
// encoded as the two-byte sequence 0xC0 0x80 instead of one zero byte, and
// characters outside the Basic Multilingual Plane are represented as a
// CESU-8 surrogate pair of three-byte sequences rather than one four-byte
// sequence. No library in the ecosystem implements this variant (including
// golang.org/x/text/encoding, which covers legacy charsets but not Java's
// class-file string form), so this is decoded by hand against the
// structure of stdlib unicode/utf8, one scalar at a time.
func decodeModifiedUTF8(b []byte) (string, error) {
	var sb strings.Builder
	sb.Grow(len(b))

	i := 0
	for i < len(b) {
		c := b[i]
		switch {
		case c&0x80 == 0: // 0xxxxxxx
			sb.WriteByte(c)
			i++

		case c&0xE0 == 0xC0: // 110xxxxx 10xxxxxx
			if i+2 > len(b) || b[i+1]&0xC0 != 0x80 {
				return "", fmt.Errorf("classfile: truncated modified-utf8 at byte %d", i)
			}
			r := rune(c&0x1F)<<6 | rune(b[i+1]&0x3F)
			sb.WriteRune(r)
			i += 2

		case c&0xF0 == 0xE0: // 1110xxxx 10xxxxxx 10xxxxxx, or half of a CESU-8 surrogate pair
			if i+3 > len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", fmt.Errorf("classfile: truncated modified-utf8 at byte %d", i)
			}
			r1 := rune(c&0x0F)<<12 | rune(b[i+1]&0x3F)<<6 | rune(b[i+2]&0x3F)

			if utf16IsHighSurrogate(r1) && i+6 <= len(b) &&
				b[i+3] == 0xED && b[i+4]&0xF0 == 0xB0 && b[i+5]&0xC0 == 0x80 {
				r2 := rune(b[i+4]&0x0F)<<6 | rune(b[i+5]&0x3F) | 0xDC00
				combined := 0x10000 + (r1-0xD800)<<10 + (r2 - 0xDC00)
				sb.WriteRune(combined)
				i += 6
				continue
			}

			if !utf8.ValidRune(r1) {
				r1 = utf8.RuneError
			}
			sb.WriteRune(r1)
			i += 3

		default:
			return "", fmt.Errorf("classfile: invalid modified-utf8 leading byte %#x at %d", c, i)
		}
	}

	return sb.String(), nil
}

func utf16IsHighSurrogate(r rune) bool { return r >= 0xD800 && r <= 0xDBFF }
