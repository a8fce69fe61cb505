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
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadObject(t *testing.T) {
	cases := []struct {
		in  string
		out Object
	}{
		{"null", nil},
		{"true", Bool(true)},
		{"false", Bool(false)},
		{"123", Integer(123)},
		{"-7", Integer(-7)},
		{"+17", Integer(17)},
		{"1.5", Real(1.5)},
		{".5", Real(0.5)},
		{"-.002", Real(-0.002)},
		{"4.", Real(4)},
		{"/Name", Name("Name")},
		{"/A#20B", Name("A B")},
		{"/", Name("")},
		{"/1.2", Name("1.2")},
		{"12 0 R", NewReference(12, 0)},
		{"  % comment\n 5", Integer(5)},
		{"[1 2 0 R 3]", Array{Integer(1), NewReference(2, 0), Integer(3)}},
		{"[]", Array{}},
		{"[/a/b(c)<64>]", Array{Name("a"), Name("b"), String("c"), HexString("d")}},
		{"<<>>", Dict{}},
		{"<</Type/Catalog/Pages 2 0 R>>", Dict{
			"Type":  Name("Catalog"),
			"Pages": NewReference(2, 0),
		}},
		{"<</A null /B 1>>", Dict{"B": Integer(1)}},
		{"<</A [<</B [1 [2]]>>]>>", Dict{
			"A": Array{Dict{"B": Array{Integer(1), Array{Integer(2)}}}},
		}},
	}
	for _, test := range cases {
		obj, err := ParseObject([]byte(test.in))
		if err != nil {
			t.Errorf("%q: %s", test.in, err)
			continue
		}
		if d := cmp.Diff(test.out, obj); d != "" {
			t.Errorf("%q: wrong object (-want +got):\n%s", test.in, d)
		}
	}
}

// A failed reference check must not lose any tokens.
func TestReferenceLookahead(t *testing.T) {
	in := "1 2 3 R 4 5 6"
	tok := NewTokenizer(strings.NewReader(in), int64(len(in)))
	dec := NewDecoder(tok)

	var got []Object
	for {
		obj, err := dec.ReadObject()
		if errors.Is(err, ErrUnexpectedEOF) {
			break
		} else if err != nil {
			t.Fatal(err)
		}
		got = append(got, obj)
	}

	want := []Object{
		Integer(1),
		NewReference(2, 3),
		Integer(4),
		Integer(5),
		Integer(6),
	}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("wrong objects (-want +got):\n%s", d)
	}
}

func TestDetermineKind(t *testing.T) {
	cases := []struct {
		in   string
		kind Kind
	}{
		{"null", KindNull},
		{"true", KindBool},
		{"12", KindInteger},
		{"12 0", KindInteger},
		{"12 0 obj", KindInteger},
		{"12 0 R", KindReference},
		{"1.0 0 R", KindReal},
		{"<<", KindDict},
		{"[", KindArray},
		{"(", KindString},
		{"<", KindHexString},
		{"/", KindName},
		{"endobj", KindUnknown},
		{"1.2.3", KindUnknown},
		{"]", KindUnknown},
	}
	for _, test := range cases {
		tok := NewTokenizer(strings.NewReader(test.in), int64(len(test.in)))
		dec := NewDecoder(tok)
		first, err := tok.NextToken()
		if err != nil {
			t.Fatal(err)
		}
		kind, err := dec.DetermineKind(first)
		if err != nil {
			t.Errorf("%q: %s", test.in, err)
		} else if kind != test.kind {
			t.Errorf("%q: got %s, want %s", test.in, kind, test.kind)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		in  string
		err error
	}{
		{"<</A 1 2 /B>>", ErrInvalidDataType},
		{"<<(key) 1>>", ErrInvalidDataType},
		{"[1 2", ErrUnexpectedEOF},
		{"(abc", ErrUnexpectedEOF},
		{"<4142", ErrUnexpectedEOF},
		{"/A#4", ErrInvalidDataType},
		{"99999999999999999999", ErrNoNumber},
		{"4294967296 0 R", ErrOutOfRange},
		{"1 65536 R", ErrOutOfRange},
		{")", ErrInvalidDataType},
		{"", ErrUnexpectedEOF},
		{strings.Repeat("[", maxNesting+1), ErrOutOfRange},
	}
	for _, test := range cases {
		_, err := ParseObject([]byte(test.in))
		if !errors.Is(err, test.err) {
			t.Errorf("%q: got error %v, want %v", test.in, err, test.err)
		}
	}
}

func TestDecrypt(t *testing.T) {
	in := "[(abc) <0102> /abc]"
	tok := NewTokenizer(strings.NewReader(in), int64(len(in)))
	dec := NewDecoder(tok)
	dec.Ref = NewReference(7, 1)

	var refs []Reference
	dec.Decrypt = func(ref Reference, buf []byte) ([]byte, error) {
		refs = append(refs, ref)
		return bytes.ToUpper(buf), nil
	}

	obj, err := dec.ReadObject()
	if err != nil {
		t.Fatal(err)
	}
	want := Array{String("ABC"), HexString{1, 2}, Name("abc")}
	if d := cmp.Diff(want, obj); d != "" {
		t.Errorf("wrong object (-want +got):\n%s", d)
	}
	if len(refs) != 2 || refs[0] != dec.Ref || refs[1] != dec.Ref {
		t.Errorf("wrong references %v", refs)
	}
}

func FuzzRoundTrip(f *testing.F) {
	f.Add("null")
	f.Add("[1 2 0 R 3.5 /Name (string) <414243>]")
	f.Add("<</Type/Catalog/Pages 2 0 R/Kids[<</A[[[1]]]>>]>>")
	f.Add("(A \\(nested\\) B)")
	f.Add("/A#20B")
	f.Fuzz(func(t *testing.T, in string) {
		obj1, err := ParseObject([]byte(in))
		if err != nil {
			return
		}
		if _, isRaw := obj1.(RawData); isRaw {
			return
		}
		buf := &bytes.Buffer{}
		err = writeObject(buf, obj1)
		if err != nil {
			// for example NaN or out-of-range references
			return
		}
		obj2, err := ParseObject(buf.Bytes())
		if err != nil {
			t.Fatalf("%q -> %q: %s", in, buf.String(), err)
		}
		if !Equal(obj1, obj2) {
			t.Errorf("%q -> %q: round trip failed", in, buf.String())
		}
	})
}
