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
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		in  Object
		out string
	}{
		{nil, "null"},
		{Bool(true), "true"},
		{Integer(-12), "-12"},
		{Real(1), "1."},
		{Real(0.25), "0.25"},
		{Name("Type"), "/Type"},
		{Name("A B#"), "/A#20B#23"},
		{Name(""), "/"},
		{String("a"), "(a)"},
		{String("a (test version)"), "(a (test version))"},
		{String("a (test version"), "(a \\(test version)"},
		{String(""), "()"},
		{String("\000"), `(\000)`},
		{String("x\\y\n"), `(x\\y\n)`},
		{HexString("AB"), "<4142>"},
		{Array{Integer(1), nil, Integer(3)}, "[1 null 3]"},
		{Dict{"B": Integer(2), "A": Name("x"), "C": nil}, "<<\n/A /x\n/B 2\n>>"},
		{NewReference(12, 3), "12 3 R"},
		{RawData("%placeholder"), "%placeholder"},
	}
	for _, test := range cases {
		out := Format(test.in)
		if out != test.out {
			t.Errorf("wrongly formatted, expected %q but got %q",
				test.out, out)
		}
	}
}

func TestParseString(t *testing.T) {
	type testCase struct {
		in  string
		out []byte
	}
	cases := []testCase{
		{`()`, nil},
		{"(test string)", []byte("test string")},
		{`(he(ll)o)`, []byte("he(ll)o")},
		{`(he\)ll\(o)`, []byte("he)ll(o")},
		{`(A \(nested\) B)`, []byte("A (nested) B")},
		{"(hello\n)", []byte("hello\n")},
		{"(hello\r)", []byte("hello\n")},
		{"(hello\r\n)", []byte("hello\n")},
		{"(hello\n\r)", []byte("hello\n\n")},
		{"(hell\\\no)", []byte("hello")},
		{"(hell\\\ro)", []byte("hello")},
		{"(hell\\\r\no)", []byte("hello")},
		{`(h\145llo)`, []byte("hello")},
		{`(\0612)`, []byte("12")},
		{`(\7)`, []byte{7}},
		{`(\q)`, []byte("q")},
		{"<>", nil},
		{"<68656c6c6f>", []byte("hello")},
		{"<68656C6C6F>", []byte("hello")},
		{"<68 65 6C\n6C 6F>", []byte("hello")},
		{"<68656C70>", []byte("help")},
		{"<68656C7>", []byte("help")},
		{"<41 42 3>", []byte("AB0")},
	}
	for i, test := range cases {
		obj, err := ParseObject([]byte(test.in))
		if err != nil {
			t.Errorf("%d %q: %s", i, test.in, err)
			continue
		}
		out, err := AsBytes(obj)
		if err != nil {
			t.Errorf("%d %q: %s", i, test.in, err)
		} else if !bytes.Equal(out, test.out) {
			t.Errorf("wrong string: %q != %q", out, test.out)
		}
	}
}

func FuzzString(f *testing.F) {
	f.Add([]byte(""))
	f.Add([]byte("ABC"))
	f.Add([]byte("(()"))
	f.Add([]byte{0, 1, 2, '\r', '\n'})
	f.Add([]byte{0xFF, 0x00})
	f.Fuzz(func(t *testing.T, data []byte) {
		for _, s1 := range []Object{String(data), HexString(data)} {
			enc := Format(s1)
			obj, err := ParseObject([]byte(enc))
			if err != nil {
				t.Fatal(err)
			}
			s2, err := AsBytes(obj)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(data, s2) {
				t.Errorf("wrong string: %q != %q", data, s2)
			}
		}
	})
}

func TestTextString(t *testing.T) {
	cases := []string{
		"",
		"hello",
		"\000\011\n\f\r",
		"ein Bär",
		"bullet • and dash –",
		"o țesătură",
		"中文",
		"日本語",
	}
	for _, test := range cases {
		enc := TextString(test)
		out := enc.AsTextString()
		if out != test {
			t.Errorf("wrong text: %q != %q", out, test)
		}
	}
}

func TestTextStringEncoding(t *testing.T) {
	// PDFDocEncoding is used where possible
	s := TextString("Bär •")
	if want := []byte{'B', 0xE4, 'r', ' ', 0x80}; !bytes.Equal(s, want) {
		t.Errorf("got % x, want % x", []byte(s), want)
	}

	// everything else becomes UTF-16BE with a byte order mark
	s = TextString("中")
	if want := []byte{0xFE, 0xFF, 0x4E, 0x2D}; !bytes.Equal(s, want) {
		t.Errorf("got % x, want % x", []byte(s), want)
	}

	utf8Text := String("\xEF\xBB\xBF中")
	if got := utf8Text.AsTextString(); got != "中" {
		t.Errorf("UTF-8 text string decoded as %q", got)
	}
}

func TestEqual(t *testing.T) {
	a := Dict{
		"Kids":  Array{NewReference(3, 0), Integer(1)},
		"Title": String("x"),
		"Gone":  nil,
	}
	b := Dict{
		"Kids":  Array{NewReference(3, 0), Integer(1)},
		"Title": String("x"),
	}
	if !Equal(a, b) || !Equal(b, a) {
		t.Error("nil-valued entries must compare equal to missing entries")
	}

	pairs := []struct {
		a, b Object
	}{
		{String("x"), HexString("x")},
		{Integer(1), Real(1)},
		{NewReference(3, 0), NewReference(3, 1)},
		{Array{Integer(1)}, Array{Integer(1), nil}},
		{&Stream{Dict: Dict{}, Data: []byte("a")}, &Stream{Dict: Dict{}, Data: []byte("b")}},
		{Dict{"A": Integer(1)}, nil},
	}
	for i, p := range pairs {
		if Equal(p.a, p.b) {
			t.Errorf("%d: %s and %s compare equal", i, Format(p.a), Format(p.b))
		}
	}
}

func TestStreamDecode(t *testing.T) {
	dataIn := []byte("\nbinary stream data\000123\n   ")
	stream, err := NewStream(Dict{"Type": Name("Test")}, dataIn,
		FilterASCIIHex{}, FilterFlate(nil))
	if err != nil {
		t.Fatal(err)
	}

	wantFilter := Array{Name("ASCIIHexDecode"), Name("FlateDecode")}
	if d := cmp.Diff(wantFilter, stream.Dict["Filter"]); d != "" {
		t.Errorf("wrong /Filter (-want +got):\n%s", d)
	}
	if _, ok := stream.Dict["DecodeParms"]; ok {
		t.Error("unexpected /DecodeParms")
	}

	// the outermost encoding is the first filter in the list
	for _, c := range stream.Data {
		if !strings.ContainsRune("0123456789abcdefABCDEF\n>", rune(c)) {
			t.Fatalf("stream data %q is not ASCIIHex encoded", stream.Data)
		}
	}

	dataOut, err := stream.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dataOut, dataIn) {
		t.Errorf("wrong result:\n  %q\n  %q", dataIn, dataOut)
	}
}

func TestReferenceParts(t *testing.T) {
	ref := NewReference(0xFFFFFFFF, 0xFFFF)
	if ref.Number() != 0xFFFFFFFF || ref.Generation() != 0xFFFF {
		t.Errorf("got %d %d", ref.Number(), ref.Generation())
	}
	if s := NewReference(7, 0).String(); s != "obj_7" {
		t.Errorf("got %q", s)
	}
	if s := NewReference(7, 2).String(); s != "obj_7@2" {
		t.Errorf("got %q", s)
	}
}
