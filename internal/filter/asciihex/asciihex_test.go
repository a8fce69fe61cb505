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

package asciihex

import (
	"bytes"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type nopCloser struct {
	*bytes.Buffer
}

func (nopCloser) Close() error { return nil }

func TestDecode(t *testing.T) {
	cases := []struct {
		in   string
		want []byte
	}{
		{">", nil},
		{"41 42>", []byte("AB")},
		{"4 1\n4 2 4>", []byte{0x41, 0x42, 0x40}},
		{"deadBEEF>", []byte{0xde, 0xad, 0xbe, 0xef}},
	}
	for _, c := range cases {
		got, err := io.ReadAll(Decode(bytes.NewReader([]byte(c.in))))
		if err != nil {
			t.Errorf("%q: %v", c.in, err)
			continue
		}
		if d := cmp.Diff(c.want, got); d != "" && len(c.want)+len(got) > 0 {
			t.Errorf("%q: %s", c.in, d)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, in := range []string{"41", "4x>"} {
		_, err := io.ReadAll(Decode(bytes.NewReader([]byte(in))))
		if err == nil {
			t.Errorf("%q: missing error", in)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	data := make([]byte, 300)
	for i := range data {
		data[i] = byte(i * 7)
	}
	buf := nopCloser{&bytes.Buffer{}}
	w := Encode(buf)
	_, err := w.Write(data)
	if err != nil {
		t.Fatal(err)
	}
	err = w.Close()
	if err != nil {
		t.Fatal(err)
	}

	got, err := io.ReadAll(Decode(buf))
	if err != nil {
		t.Fatal(err)
	}
	if d := cmp.Diff(data, got); d != "" {
		t.Error(d)
	}
}
