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
	"errors"
	"io"
)

const sourceBufSize = 4096

// source gives buffered, seekable byte access to a file.  Only a window of
// the file is kept in memory.
type source struct {
	r    io.ReaderAt
	size int64

	buf       []byte
	base      int64 // file offset of buf[0]
	pos, used int
}

func newSource(r io.ReaderAt, size int64) *source {
	return &source{
		r:    r,
		size: size,
		buf:  make([]byte, sourceBufSize),
	}
}

func (s *source) tell() int64 {
	return s.base + int64(s.pos)
}

func (s *source) length() int64 {
	return s.size
}

// seek moves the read position to the given file offset.  The buffer is
// kept if the new position is inside the buffered window.
func (s *source) seek(pos int64) {
	if pos >= s.base && pos <= s.base+int64(s.used) {
		s.pos = int(pos - s.base)
		return
	}
	s.base = pos
	s.pos = 0
	s.used = 0
}

// refill discards the consumed part of the buffer and reads as much new data
// as fits.  At the end of the file, s.used stays smaller than the buffer size
// but no error is returned.
func (s *source) refill() error {
	s.base += int64(s.pos)
	copy(s.buf, s.buf[s.pos:s.used])
	s.used -= s.pos
	s.pos = 0

	start := s.base + int64(s.used)
	if start >= s.size || start < 0 {
		return nil
	}
	want := len(s.buf) - s.used
	if rest := s.size - start; rest < int64(want) {
		want = int(rest)
	}
	n, err := s.r.ReadAt(s.buf[s.used:s.used+want], start)
	s.used += n
	if err == io.EOF {
		err = nil
	}
	return err
}

func (s *source) peekByte() (byte, error) {
	if s.pos >= s.used {
		err := s.refill()
		if err != nil {
			return 0, err
		}
		if s.pos >= s.used {
			return 0, io.EOF
		}
	}
	return s.buf[s.pos], nil
}

func (s *source) readByte() (byte, error) {
	c, err := s.peekByte()
	if err != nil {
		return 0, err
	}
	s.pos++
	return c, nil
}

// peek returns a view of the next n bytes of input.  Near the end of the file
// a shorter slice is returned.  The function panics if n is larger than the
// buffer size.
func (s *source) peek(n int) ([]byte, error) {
	if n > sourceBufSize {
		panic("peek window too large")
	}
	if s.pos+n > s.used {
		err := s.refill()
		if err != nil {
			return nil, err
		}
	}
	if s.pos+n > s.used {
		return s.buf[s.pos:s.used], nil
	}
	return s.buf[s.pos : s.pos+n], nil
}

// readN reads the next n bytes.  Large reads bypass the buffer.
func (s *source) readN(n int64) ([]byte, error) {
	if n < 0 {
		return nil, errors.New("negative read length")
	}
	start := s.tell()
	if start+n > s.size {
		return nil, io.ErrUnexpectedEOF
	}
	res := make([]byte, n)
	if n <= int64(s.used-s.pos) {
		copy(res, s.buf[s.pos:])
		s.pos += int(n)
		return res, nil
	}
	_, err := s.r.ReadAt(res, start)
	if err != nil && err != io.EOF {
		return nil, err
	}
	s.seek(start + n)
	return res, nil
}
