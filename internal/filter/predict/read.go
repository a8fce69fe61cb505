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
	"fmt"
	"io"
)

// NewReader returns a reader which undoes the prediction on the data read
// from r.  For predictor 1, r is returned unchanged.
func NewReader(r io.Reader, p *Params) (io.Reader, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.Predictor == 1 {
		return r, nil
	}

	n := p.bytesPerRow()
	res := &reader{
		r:    r,
		p:    p,
		prev: make([]byte, n),
		row:  make([]byte, n),
	}
	if p.isPNG() {
		res.in = make([]byte, n+1) // tag byte
	} else {
		res.in = make([]byte, n)
	}
	return res, nil
}

type reader struct {
	r io.Reader
	p *Params

	in   []byte
	row  []byte
	prev []byte // the previously decoded row
	pend []byte // decoded data not yet returned
	err  error
}

// Read implements the [io.Reader] interface.
func (r *reader) Read(buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		if len(r.pend) > 0 {
			k := copy(buf[n:], r.pend)
			n += k
			r.pend = r.pend[k:]
			continue
		}
		if r.err != nil {
			return n, r.err
		}

		k, err := io.ReadFull(r.r, r.in)
		if err == io.ErrUnexpectedEOF {
			err = io.EOF
		}
		if k > 0 {
			// A short final row is decoded as far as it goes.
			decErr := r.decodeRow(r.in[:k])
			if decErr != nil {
				r.err = decErr
				return n, decErr
			}
		}
		if err != nil {
			r.err = err
		}
	}
	return n, nil
}

func (r *reader) decodeRow(in []byte) error {
	if r.p.isPNG() {
		return r.decodePNG(in[0], in[1:])
	}
	r.decodeTIFF(in)
	return nil
}

func (r *reader) decodePNG(tag byte, data []byte) error {
	bpp := r.p.bytesPerPixel()
	row := r.row[:len(data)]
	for i, x := range data {
		var left, upLeft byte
		if i >= bpp {
			left = row[i-bpp]
			upLeft = r.prev[i-bpp]
		}
		up := r.prev[i]
		switch tag {
		case 0:
			row[i] = x
		case 1:
			row[i] = x + left
		case 2:
			row[i] = x + up
		case 3:
			row[i] = x + byte((int(left)+int(up))/2)
		case 4:
			row[i] = x + paeth(left, up, upLeft)
		default:
			return fmt.Errorf("invalid PNG filter type %d", tag)
		}
	}
	copy(r.prev, row)
	r.pend = r.prev[:len(row)]
	return nil
}

func (r *reader) decodeTIFF(data []byte) {
	bits := r.p.BitsPerComponent
	colors := r.p.Colors
	row := r.row[:len(data)]
	copy(row, data)

	nComp := min(len(row)*8/bits, r.p.Columns*colors)
	mask := uint32(1)<<bits - 1
	for k := colors; k < nComp; k++ {
		val := getComponent(row, k, bits) + getComponent(row, k-colors, bits)
		setComponent(row, k, bits, val&mask)
	}
	copy(r.prev, row)
	r.pend = r.prev[:len(row)]
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	if pa <= pb && pa <= pc {
		return a
	} else if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
