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

// Package runlength implements the RunLengthDecode filter.
//
// Each run starts with a length byte n.  For n < 128, the following n+1
// bytes are copied literally.  For n > 128, the next byte is repeated 257-n
// times.  The value 128 marks the end of the data.
package runlength

import (
	"bufio"
	"io"
)

// Decode returns a reader which decodes run-length encoded data read from r.
func Decode(r io.Reader) io.Reader {
	return &reader{br: bufio.NewReader(r)}
}

type reader struct {
	br      *bufio.Reader
	err     error
	literal bool
	count   int
	value   byte
}

func (r *reader) Read(p []byte) (n int, err error) {
	for len(p) > 0 {
		if r.count > 0 {
			k := min(r.count, len(p))
			if r.literal {
				k, err = io.ReadFull(r.br, p[:k])
				if err == io.EOF {
					err = io.ErrUnexpectedEOF
				}
				if err != nil {
					r.err = err
				}
			} else {
				for i := range k {
					p[i] = r.value
				}
			}
			n += k
			r.count -= k
			p = p[k:]
			if r.err != nil {
				return n, r.err
			}
			continue
		}
		if r.err != nil {
			return n, r.err
		}

		length, err := r.br.ReadByte()
		if err != nil {
			// a missing end-of-data marker is tolerated
			r.err = err
			continue
		}
		switch {
		case length == 128:
			r.err = io.EOF
		case length < 128:
			r.count = int(length) + 1
			r.literal = true
		default:
			r.count = 257 - int(length)
			r.value, err = r.br.ReadByte()
			if err != nil {
				r.count = 0
				r.err = io.ErrUnexpectedEOF
			}
			r.literal = false
		}
	}
	return n, nil
}

// Encode returns a writer which run-length encodes the data written to it
// and writes the result to w.  Closing the returned writer writes the
// end-of-data marker and closes w.
func Encode(w io.WriteCloser) io.WriteCloser {
	return &writer{w: w}
}

type writer struct {
	w io.WriteCloser

	// lit holds pending literal bytes, after the length byte in lit[0]
	lit  [129]byte
	used int

	repeatCount int
	repeatVal   byte
}

func (w *writer) Write(p []byte) (n int, err error) {
	for n < len(p) {
		b := p[n]
		n++

		if w.repeatCount > 0 {
			if b == w.repeatVal && w.repeatCount < 128 {
				w.repeatCount++
				continue
			}
			err = w.flushRepeat()
			if err != nil {
				return n, err
			}
		}

		w.lit[1+w.used] = b
		w.used++

		// three equal bytes at the end of the literal start a new run
		if w.used >= 3 {
			k := 1 + w.used - 3
			if w.lit[k] == w.lit[k+1] && w.lit[k+1] == w.lit[k+2] {
				if w.used > 3 {
					err = w.flushLiteral(w.used - 3)
					if err != nil {
						return n, err
					}
				}
				w.repeatCount = 3
				w.repeatVal = b
				w.used = 0
				continue
			}
		}

		if w.used == 128 {
			err = w.flushLiteral(128)
			if err != nil {
				return n, err
			}
		}
	}
	return n, nil
}

func (w *writer) flushLiteral(count int) error {
	w.lit[0] = byte(count - 1)
	_, err := w.w.Write(w.lit[:count+1])
	w.used = 0
	return err
}

func (w *writer) flushRepeat() error {
	_, err := w.w.Write([]byte{byte(257 - w.repeatCount), w.repeatVal})
	w.repeatCount = 0
	return err
}

func (w *writer) Close() error {
	if w.repeatCount > 0 {
		err := w.flushRepeat()
		if err != nil {
			return err
		}
	}
	if w.used > 0 {
		err := w.flushLiteral(w.used)
		if err != nil {
			return err
		}
	}
	_, err := w.w.Write([]byte{128})
	if err != nil {
		return err
	}
	return w.w.Close()
}
