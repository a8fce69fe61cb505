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
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFilterRoundTrip(t *testing.T) {
	filters := []Filter{
		FilterFlate(nil),
		FilterFlate{"Predictor": Integer(1)},
		FilterFlate{"Predictor": Integer(12), "Columns": Integer(5)},
		FilterFlate{"Predictor": Integer(2), "Colors": Integer(1), "Columns": Integer(5)},
		FilterASCIIHex{},
		FilterASCII85{},
		FilterRunLength{},
	}
	for _, f := range filters {
		name, parms := f.Info()
		for _, in := range []string{"", "12345", "1234567890", "aaaaaaaaaabbbbbbbbbb"} {
			stream, err := NewStream(nil, []byte(in), f)
			if err != nil {
				t.Errorf("%s %s: %s", name, Format(parms), err)
				continue
			}
			out, err := stream.Decode()
			if err != nil {
				t.Errorf("%s %s: %s", name, Format(parms), err)
				continue
			}
			if in != string(out) {
				t.Errorf("%s: wrong results: %q vs %q", name, in, out)
			}
		}
	}
}

func TestMakeFilter(t *testing.T) {
	for _, name := range []Name{"FlateDecode", "Fl", "ASCIIHexDecode", "AHx", "ASCII85Decode", "A85", "RunLengthDecode", "RL"} {
		_, err := MakeFilter(name, nil)
		if err != nil {
			t.Errorf("%s: %s", name, err)
		}
	}

	for _, name := range []Name{"LZWDecode", "DCTDecode", "Crypt", "Bogus"} {
		_, err := MakeFilter(name, nil)
		if !errors.Is(err, ErrUnsupportedFilter) {
			t.Errorf("%s: got %v", name, err)
		}
	}
}

func TestFilterParms(t *testing.T) {
	parms := Dict{"Predictor": Integer(12), "Columns": Integer(4)}
	stream, err := NewStream(nil, []byte("abcdefgh"), FilterASCII85{}, FilterFlate(parms))
	if err != nil {
		t.Fatal(err)
	}
	want := Dict{
		"Filter":      Array{Name("ASCII85Decode"), Name("FlateDecode")},
		"DecodeParms": Array{nil, parms},
	}
	if d := cmp.Diff(want, stream.Dict); d != "" {
		t.Errorf("wrong stream dict (-want +got):\n%s", d)
	}

	filters, err := stream.Filters()
	if err != nil {
		t.Fatal(err)
	}
	if len(filters) != 2 {
		t.Fatalf("got %d filters", len(filters))
	}
	_, gotParms := filters[1].Info()
	if !Equal(gotParms, parms) {
		t.Errorf("got parameters %s", Format(gotParms))
	}

	out, err := stream.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, []byte("abcdefgh")) {
		t.Errorf("got %q", out)
	}

	bad := &Stream{Dict: Dict{"Filter": Integer(1)}}
	if _, err := bad.Filters(); !errors.Is(err, ErrInvalidDataType) {
		t.Errorf("invalid /Filter: got %v", err)
	}
	bad = &Stream{Dict: Dict{"Filter": Name("FlateDecode"), "DecodeParms": Dict{"Predictor": Name("x")}}}
	if _, err := bad.Decode(); err == nil {
		t.Error("invalid /Predictor accepted")
	}
}
