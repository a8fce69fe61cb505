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

package flate

import (
	"bytes"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/pdfcore/internal/filter/predict"
)

type nopCloser struct {
	*bytes.Buffer
}

func (nopCloser) Close() error { return nil }

func TestRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789abcdef"), 100)
	params := []*predict.Params{
		nil,
		{Predictor: 1},
		{Predictor: 12, Colors: 1, BitsPerComponent: 8, Columns: 16},
		{Predictor: 2, Colors: 4, BitsPerComponent: 8, Columns: 4},
	}
	for i, p := range params {
		buf := nopCloser{&bytes.Buffer{}}
		w, err := Encode(buf, p)
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

		r, err := Decode(bytes.NewReader(buf.Bytes()), p)
		if err != nil {
			t.Fatal(err)
		}
		got, err := io.ReadAll(r)
		if err != nil {
			t.Fatal(err)
		}
		if d := cmp.Diff(data, got); d != "" {
			t.Errorf("%d: %s", i, d)
		}
	}
}

func TestTruncated(t *testing.T) {
	data := bytes.Repeat([]byte("hello "), 1000)
	buf := nopCloser{&bytes.Buffer{}}
	w, _ := Encode(buf, nil)
	w.Write(data)
	w.Close()

	// drop the checksum
	body := buf.Bytes()[:buf.Len()-4]
	r, err := Decode(bytes.NewReader(body), nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("wrong data from truncated stream")
	}
}
