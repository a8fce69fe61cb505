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

// Package asciihex implements the ASCIIHexDecode filter.
package asciihex

import (
	"bufio"
	"fmt"
	"io"
)

// Decode returns a reader which decodes ASCIIHex data read from r.
// The data ends at the first ">".  White space is ignored, and a missing
// final digit is taken to be zero.
func Decode(r io.Reader) io.Reader {
	return &reader{r: bufio.NewReader(r)}
}

type reader struct {
	r   *bufio.Reader
	err error
}

func (r *reader) Read(p []byte) (n int, err error) {
	if r.err != nil {
		return 0, r.err
	}

	readHigh := false
	var high byte
readLoop:
	for n < len(p) {
		c, err := r.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			r.err = err
			break readLoop
		}

		var b byte
		switch c {
		case '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
			b = c - '0'
		case 'A', 'B', 'C', 'D', 'E', 'F':
			b = c - 'A' + 10
		case 'a', 'b', 'c', 'd', 'e', 'f':
			b = c - 'a' + 10
		case 0, 9, 10, 12, 13, 32:
			continue readLoop
		case '>':
			if readHigh {
				p[n] = high << 4
				n++
				readHigh = false
			}
			r.err = io.EOF
			break readLoop
		default:
			r.err = fmt.Errorf("invalid hex character %q", c)
			break readLoop
		}

		if readHigh {
			p[n] = high<<4 | b
			n++
			readHigh = false
		} else {
			high = b
			readHigh = true
		}
	}

	return n, r.err
}

// Encode returns a writer which writes the ASCIIHex encoding of the data to
// w.  Closing the returned writer writes the end marker and closes w.
func Encode(w io.WriteCloser) io.WriteCloser {
	return &writer{w: w}
}

type writer struct {
	w   io.WriteCloser
	buf []byte
	col int
}

const digits = "0123456789abcdef"

func (w *writer) Write(p []byte) (int, error) {
	w.buf = w.buf[:0]
	for _, c := range p {
		w.buf = append(w.buf, digits[c>>4], digits[c&15])
		w.col += 2
		if w.col >= 64 {
			w.buf = append(w.buf, '\n')
			w.col = 0
		}
	}
	_, err := w.w.Write(w.buf)
	if err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *writer) Close() error {
	_, err := w.w.Write([]byte(">"))
	if err != nil {
		return err
	}
	return w.w.Close()
}
