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

// Package ascii85 implements the ASCII85Decode filter.
//
// In contrast to [encoding/ascii85], this package handles the "~>" end
// marker, and white space anywhere in the input.
package ascii85

import (
	"bufio"
	"errors"
	"io"
)

// Decode returns a reader which decodes ASCII85 data read from r.
func Decode(r io.Reader) io.Reader {
	return &reader{r: bufio.NewReader(r)}
}

type reader struct {
	r   *bufio.Reader
	err error

	v       uint32
	k       int
	out     [4]byte
	pending []byte
}

var (
	errEndMarker = errors.New("invalid end marker in ASCII85 stream")
	errChar      = errors.New("invalid character in ASCII85 stream")
)

func (r *reader) Read(p []byte) (n int, err error) {
	for n < len(p) {
		if len(r.pending) > 0 {
			k := copy(p[n:], r.pending)
			n += k
			r.pending = r.pending[k:]
			continue
		}
		if r.err != nil {
			return n, r.err
		}

		c, err := r.r.ReadByte()
		if err == io.EOF {
			// tolerate a missing end marker
			r.flushPartial()
			r.err = io.EOF
			continue
		} else if err != nil {
			r.err = err
			continue
		}

		switch {
		case c == 0 || c == 9 || c == 10 || c == 12 || c == 13 || c == 32:
			continue
		case c >= '!' && c < '!'+85:
			r.v = r.v*85 + uint32(c-'!')
			r.k++
			if r.k == 5 {
				r.emit(4)
				r.v = 0
				r.k = 0
			}
		case c == 'z' && r.k == 0:
			r.emit(4)
		case c == '~':
			next, err := r.r.ReadByte()
			if err != nil || next != '>' {
				r.err = errEndMarker
				continue
			}
			if r.k == 1 {
				r.err = errEndMarker
				continue
			}
			r.flushPartial()
			r.err = io.EOF
		default:
			r.err = errChar
		}
	}
	return n, nil
}

// flushPartial decodes a final group of fewer than five characters.
func (r *reader) flushPartial() {
	if r.k < 2 {
		r.k = 0
		return
	}
	for i := r.k; i < 5; i++ {
		r.v = r.v*85 + 84
	}
	r.emit(r.k - 1)
	r.k = 0
	r.v = 0
}

func (r *reader) emit(count int) {
	r.out[0] = byte(r.v >> 24)
	r.out[1] = byte(r.v >> 16)
	r.out[2] = byte(r.v >> 8)
	r.out[3] = byte(r.v)
	r.pending = r.out[:count]
}

// Encode returns a writer which writes the ASCII85 encoding of the data to
// w.  Closing the returned writer writes the end marker and closes w.
func Encode(w io.WriteCloser) io.WriteCloser {
	return &writer{w: w, buf: make([]byte, 0, 80)}
}

type writer struct {
	w   io.WriteCloser
	buf []byte
	v   uint32
	k   int
}

func (w *writer) Write(p []byte) (int, error) {
	for _, b := range p {
		w.v = w.v<<8 | uint32(b)
		w.k++
		if w.k < 4 {
			continue
		}

		if len(w.buf)+8 > cap(w.buf) { // space for "xxxxx~>\n"
			err := w.flush()
			if err != nil {
				return 0, err
			}
		}
		if w.v == 0 {
			w.buf = append(w.buf, 'z')
		} else {
			w.buf = appendGroup(w.buf, w.v, 5)
		}
		w.v = 0
		w.k = 0
	}
	return len(p), nil
}

func appendGroup(buf []byte, v uint32, count int) []byte {
	var c [5]byte
	for i := 4; i >= 0; i-- {
		c[i] = byte(v%85) + '!'
		v /= 85
	}
	return append(buf, c[:count]...)
}

func (w *writer) Close() error {
	if w.k > 0 {
		v := w.v << ((4 - w.k) * 8)
		w.buf = appendGroup(w.buf, v, w.k+1)
		w.v = 0
		w.k = 0
	}
	w.buf = append(w.buf, '~', '>')
	err := w.flush()
	if err != nil {
		return err
	}
	return w.w.Close()
}

func (w *writer) flush() error {
	w.buf = append(w.buf, '\n')
	_, err := w.w.Write(w.buf)
	w.buf = w.buf[:0]
	return err
}
