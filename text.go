// seehuhn.de/go/pdfcore - support for reading and writing PDF files
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package pdfcore

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// AsTextString interprets s as a PDF text string.  Text strings are encoded
// either as UTF-16BE with a byte order mark, as UTF-8 with a byte order mark,
// or using PDFDocEncoding.
func (s String) AsTextString() string {
	return decodeTextString(s)
}

// AsTextString interprets s as a PDF text string.
// See [String.AsTextString] for details.
func (s HexString) AsTextString() string {
	return decodeTextString(s)
}

// TextString encodes s as a PDF text string.  PDFDocEncoding is used where
// possible, and UTF-16BE otherwise.
func TextString(s string) String {
	if buf, ok := pdfDocEncode(s); ok && !hasBOM(buf) {
		return String(buf)
	}
	buf, err := utf16Enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		// only reachable for invalid UTF-8, where the encoder would have
		// substituted U+FFFD
		return String(s)
	}
	return String(buf)
}

var (
	utf16Dec = unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM)
	utf16Enc = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)
	utf8BOM  = []byte{0xEF, 0xBB, 0xBF}
)

func decodeTextString(s []byte) string {
	switch {
	case len(s) >= 2 && s[0] == 0xFE && s[1] == 0xFF:
		buf, err := utf16Dec.NewDecoder().Bytes(s)
		if err == nil {
			return string(buf)
		}
	case bytes.HasPrefix(s, utf8BOM) && utf8.Valid(s[3:]):
		return string(s[3:])
	}
	return pdfDocDecode(s)
}

func hasBOM(s []byte) bool {
	return len(s) >= 2 && s[0] == 0xFE && s[1] == 0xFF || bytes.HasPrefix(s, utf8BOM)
}

func pdfDocDecode(s []byte) string {
	r := make([]rune, len(s))
	for i, c := range s {
		r[i] = pdfDocEncoding[c]
	}
	return string(r)
}

// PDFDocEncode encodes s using PDFDocEncoding.  The second return value is
// false if s contains characters which cannot be represented.
func PDFDocEncode(s string) ([]byte, bool) {
	return pdfDocEncode(s)
}

func pdfDocEncode(s string) ([]byte, bool) {
	res := make([]byte, 0, len(s))
	for _, r := range s {
		c, ok := pdfDocReverse[r]
		if !ok {
			return nil, false
		}
		res = append(res, c)
	}
	return res, true
}

// pdfDocEncoding maps PDFDocEncoding codes to unicode.  Undefined codes map
// to U+FFFD.
var pdfDocEncoding [256]rune

var pdfDocReverse map[rune]byte

func init() {
	for i := range pdfDocEncoding {
		pdfDocEncoding[i] = rune(i)
	}
	copy(pdfDocEncoding[0x18:], []rune{
		0x02D8, 0x02C7, 0x02C6, 0x02D9, 0x02DD, 0x02DB, 0x02DA, 0x02DC,
	})
	copy(pdfDocEncoding[0x80:], []rune{
		0x2022, 0x2020, 0x2021, 0x2026, 0x2014, 0x2013, 0x0192, 0x2044,
		0x2039, 0x203A, 0x2212, 0x2030, 0x201E, 0x201C, 0x201D, 0x2018,
		0x2019, 0x201A, 0x2122, 0xFB01, 0xFB02, 0x0141, 0x0152, 0x0160,
		0x0178, 0x017D, 0x0131, 0x0142, 0x0153, 0x0161, 0x017E, 0xFFFD,
		0x20AC,
	})
	pdfDocEncoding[0x7F] = 0xFFFD
	pdfDocEncoding[0xAD] = 0xFFFD

	pdfDocReverse = make(map[rune]byte, 256)
	for i, r := range pdfDocEncoding {
		if r != 0xFFFD {
			pdfDocReverse[r] = byte(i)
		}
	}
}
