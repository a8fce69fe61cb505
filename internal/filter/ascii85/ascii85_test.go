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

package ascii85

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
		want string
	}{
		{"~>", ""},
		{"87cURD]i,\"Ebo80~>", "Hello World!"},
		{"z~>", "\x00\x00\x00\x00"},
		{"87cUR\nD]i,\"Eb o80~>", "Hello World!"},
		{"87cURD]i,\"Ebo80", "Hello World!"}, // missing end marker
	}
	for _, c := range cases {
		got, err := io.ReadAll(Decode(bytes.NewReader([]byte(c.in))))
		if err != nil {
			t.Errorf("%q: %v", c.in, err)
			continue
		}
		if string(got) != c.want {
			t.Errorf("%q: got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	for _, in := range []string{"8~>", "abc{~>", "87cUR~x"} {
		_, err := io.ReadAll(Decode(bytes.NewReader([]byte(in))))
		if err == nil {
			t.Errorf("%q: missing error", in)
		}
	}
}

func FuzzRoundTrip(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0, 0, 0, 0, 1})
	f.Add([]byte("Hello World!"))
	f.Fuzz(func(t *testing.T, data []byte) {
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
		if !bytes.Equal(got, data) {
			t.Error(cmp.Diff(data, got))
		}
	})
}
