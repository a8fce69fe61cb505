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

package predict

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type nopCloser struct {
	*bytes.Buffer
}

func (nopCloser) Close() error { return nil }

func TestPNGUp(t *testing.T) {
	// two rows of three bytes, both using the "Up" filter
	encoded := []byte{
		2, 1, 2, 3,
		2, 1, 1, 1,
	}
	p := &Params{Predictor: 12, Colors: 1, BitsPerComponent: 8, Columns: 3}
	r, err := NewReader(bytes.NewReader(encoded), p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 2, 3, 4}
	if d := cmp.Diff(want, got); d != "" {
		t.Error(d)
	}
}

func TestTIFF8(t *testing.T) {
	encoded := []byte{10, 20, 1, 2, 1, 2}
	p := &Params{Predictor: 2, Colors: 2, BitsPerComponent: 8, Columns: 3}
	r, err := NewReader(bytes.NewReader(encoded), p)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{10, 20, 11, 22, 12, 24}
	if d := cmp.Diff(want, got); d != "" {
		t.Error(d)
	}
}

func TestInvalidPNGTag(t *testing.T) {
	p := &Params{Predictor: 15, Colors: 1, BitsPerComponent: 8, Columns: 2}
	r, err := NewReader(bytes.NewReader([]byte{7, 1, 2}), p)
	if err != nil {
		t.Fatal(err)
	}
	_, err = io.ReadAll(r)
	if err == nil {
		t.Error("invalid filter type not detected")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		p  Params
		ok bool
	}{
		{Params{Predictor: 1}, true},
		{Params{Predictor: 2, Colors: 3, BitsPerComponent: 8, Columns: 10}, true},
		{Params{Predictor: 12, Colors: 1, BitsPerComponent: 16, Columns: 1}, true},
		{Params{Predictor: 3, Colors: 1, BitsPerComponent: 8, Columns: 1}, false},
		{Params{Predictor: 12, Colors: 0, BitsPerComponent: 8, Columns: 1}, false},
		{Params{Predictor: 12, Colors: 1, BitsPerComponent: 3, Columns: 1}, false},
		{Params{Predictor: 12, Colors: 1, BitsPerComponent: 8, Columns: 0}, false},
	}
	for i, c := range cases {
		err := c.p.Validate()
		if (err == nil) != c.ok {
			t.Errorf("%d: unexpected error %v", i, err)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, predictor := range []int{2, 10, 11, 12, 13, 14, 15} {
		for _, bpc := range []int{1, 2, 4, 8, 16} {
			for _, colors := range []int{1, 3} {
				p := &Params{
					Predictor:        predictor,
					Colors:           colors,
					BitsPerComponent: bpc,
					Columns:          7,
				}
				name := fmt.Sprintf("P%d-B%d-C%d", predictor, bpc, colors)
				t.Run(name, func(t *testing.T) {
					// five full rows and a partial one
					data := make([]byte, 5*p.bytesPerRow()+1)
					rng.Read(data)

					buf := nopCloser{&bytes.Buffer{}}
					w, err := NewWriter(buf, p)
					if err != nil {
						t.Fatal(err)
					}
					_, err = w.Write(data)
					if err != nil {
						t.Fatal(err)
					}
					err = w.Close()
					if err != nil {
						t.Fatal(err)
					}

					r, err := NewReader(bytes.NewReader(buf.Bytes()), p)
					if err != nil {
						t.Fatal(err)
					}
					got, err := io.ReadAll(r)
					if err != nil {
						t.Fatal(err)
					}
					if d := cmp.Diff(data, got); d != "" {
						t.Error(d)
					}
				})
			}
		}
	}
}
