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
	"io"
)

// NewWriter returns a writer which applies the prediction to the data
// before passing it on to w.  Closing the returned writer closes w.
// For predictor 1, w is returned unchanged.
//
// For predictor 15 (PNG optimum), the filter type is chosen separately for
// every row.
func NewWriter(w io.WriteCloser, p *Params) (io.WriteCloser, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Predictor == 1 {
		return w, nil
	}

	n := p.bytesPerRow()
	return &writer{
		w:    w,
		p:    p,
		row:  make([]byte, 0, n),
		prev: make([]byte, n),
		out:  make([]byte, n+1),
		try:  make([]byte, n+1),
	}, nil
}

type writer struct {
	w io.WriteCloser
	p *Params

	row  []byte
	prev []byte
	out  []byte
	try  []byte
}

// Write implements the [io.Writer] interface.
func (w *writer) Write(buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		k := min(cap(w.row)-len(w.row), len(buf)-n)
		w.row = append(w.row, buf[n:n+k]...)
		n += k
		if len(w.row) == cap(w.row) {
			err := w.encodeRow()
			if err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

// Close writes any partial final row and closes the underlying writer.
func (w *writer) Close() error {
	if len(w.row) > 0 {
		err := w.encodeRow()
		if err != nil {
			return err
		}
	}
	return w.w.Close()
}

func (w *writer) encodeRow() error {
	var out []byte
	if w.p.isPNG() {
		out = w.encodePNG()
	} else {
		out = w.encodeTIFF()
	}
	_, err := w.w.Write(out)
	copy(w.prev, w.row)
	w.row = w.row[:0]
	return err
}

func (w *writer) encodePNG() []byte {
	if w.p.Predictor < 15 {
		tag := byte(w.p.Predictor - 10)
		w.filterPNG(w.out, tag)
		return w.out[:len(w.row)+1]
	}

	// Choose the filter with the smallest sum of absolute values, as
	// suggested in the PNG specification.
	best := -1
	for tag := byte(0); tag <= 4; tag++ {
		w.filterPNG(w.try, tag)
		score := 0
		for _, b := range w.try[1 : len(w.row)+1] {
			score += abs(int(int8(b)))
		}
		if best < 0 || score < best {
			best = score
			w.out, w.try = w.try, w.out
		}
	}
	return w.out[:len(w.row)+1]
}

func (w *writer) filterPNG(out []byte, tag byte) {
	bpp := w.p.bytesPerPixel()
	out[0] = tag
	for i, x := range w.row {
		var left, upLeft byte
		if i >= bpp {
			left = w.row[i-bpp]
			upLeft = w.prev[i-bpp]
		}
		up := w.prev[i]
		switch tag {
		case 0:
			out[i+1] = x
		case 1:
			out[i+1] = x - left
		case 2:
			out[i+1] = x - up
		case 3:
			out[i+1] = x - byte((int(left)+int(up))/2)
		case 4:
			out[i+1] = x - paeth(left, up, upLeft)
		}
	}
}

func (w *writer) encodeTIFF() []byte {
	bits := w.p.BitsPerComponent
	colors := w.p.Colors
	out := w.out[:len(w.row)]
	copy(out, w.row)

	nComp := min(len(out)*8/bits, w.p.Columns*colors)
	mask := uint32(1)<<bits - 1
	for k := colors; k < nComp; k++ {
		val := getComponent(w.row, k, bits) - getComponent(w.row, k-colors, bits)
		setComponent(out, k, bits, val&mask)
	}
	return out
}
