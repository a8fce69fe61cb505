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
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

// testFile assembles PDF files for tests, keeping track of object offsets.
type testFile struct {
	buf     bytes.Buffer
	offsets map[uint32]int64
}

func newTestFile(version string) *testFile {
	f := &testFile{offsets: make(map[uint32]int64)}
	fmt.Fprintf(&f.buf, "%%PDF-%s\n%%\x80\x80\x80\x80\n", version)
	return f
}

func (f *testFile) pos() int64 {
	return int64(f.buf.Len())
}

// object writes "N 0 obj" followed by the given PDF syntax.
func (f *testFile) object(number uint32, body string) {
	f.offsets[number] = f.pos()
	fmt.Fprintf(&f.buf, "%d 0 obj\n%s\nendobj\n", number, body)
}

// indirect writes obj as an indirect object.
func (f *testFile) indirect(number uint32, obj Object) {
	f.offsets[number] = f.pos()
	fmt.Fprintf(&f.buf, "%d 0 obj\n", number)
	err := writeObject(&f.buf, obj)
	if err != nil {
		panic(err)
	}
	f.buf.WriteString("\nendobj\n")
}

// xref writes a classic xref table with a one-entry subsection for each of
// the given objects, and returns the position of the table.
func (f *testFile) xref(numbers ...uint32) int64 {
	pos := f.pos()
	f.buf.WriteString("xref\n0 1\n0000000000 65535 f\r\n")
	for _, n := range numbers {
		fmt.Fprintf(&f.buf, "%d 1\n%010d 00000 n\r\n", n, f.offsets[n])
	}
	return pos
}

func (f *testFile) trailer(dict string, xrefPos int64) {
	fmt.Fprintf(&f.buf, "trailer\n<<%s>>\nstartxref\n%d\n%%%%EOF\n", dict, xrefPos)
}

func (f *testFile) startxref(pos int64) {
	fmt.Fprintf(&f.buf, "startxref\n%d\n%%%%EOF\n", pos)
}

func (f *testFile) bytes() []byte {
	return f.buf.Bytes()
}

func (f *testFile) open(t *testing.T, opt *ReaderOptions) *Reader {
	t.Helper()
	r, err := f.tryOpen(opt)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func (f *testFile) tryOpen(opt *ReaderOptions) (*Reader, error) {
	data := f.bytes()
	return NewReader(bytes.NewReader(data), int64(len(data)), opt)
}

// streamRecord encodes one entry of an xref stream with /W [1 4 2].
func streamRecord(tp byte, f2 uint32, f3 uint16) []byte {
	return []byte{
		tp,
		byte(f2 >> 24), byte(f2 >> 16), byte(f2 >> 8), byte(f2),
		byte(f3 >> 8), byte(f3),
	}
}

// objStmData builds the decoded contents of an object stream holding the
// given objects, numbered consecutively from first.  The second return
// value is the value for /First.
func objStmData(first uint32, members ...string) ([]byte, int) {
	var head, body bytes.Buffer
	for i, m := range members {
		fmt.Fprintf(&head, "%d %d ", first+uint32(i), body.Len())
		body.WriteString(m)
		body.WriteString("\n")
	}
	n := head.Len()
	return append(head.Bytes(), body.Bytes()...), n
}

var recoverOpt = &ReaderOptions{ErrorHandling: ErrorHandlingRecover}

// newTestLogger returns a logger which writes all messages to w.
func newTestLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
