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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/exp/maps"
)

// WriterOptions configures a [Writer].
type WriterOptions struct {
	// Version is the PDF version written in the file header.  The default
	// is PDF 1.7.  For incremental updates, the version of the base file is
	// used.
	Version Version

	// XRefStream selects a cross-reference stream instead of a classic
	// cross-reference table.  This requires PDF 1.5 or newer.
	XRefStream bool

	// Security, if set, is used to encrypt all strings and streams.
	// Encrypt must then hold the corresponding encryption dictionary and
	// ID the file identifier the key was derived from.
	Security SecurityHandler
	Encrypt  Dict

	// ID is written as the /ID entry of the trailer.
	ID [][]byte

	// Logger receives debug information.  If this is nil, nothing is
	// logged.
	Logger *slog.Logger
}

// Writer writes objects to a PDF file.  After all objects have been
// written, [Writer.Close] must be called to write the cross-reference
// section and the trailer.
type Writer struct {
	w       *posWriter
	opt     WriterOptions
	log     *slog.Logger
	version Version

	xref       *XRefWriter
	written    map[uint32]bool
	nextNumber uint32

	base       *Reader
	encryptRef Reference
}

func newWriter(w io.Writer, opt *WriterOptions) *Writer {
	pdf := &Writer{
		w:          &posWriter{w: w},
		xref:       NewXRefWriter(),
		written:    make(map[uint32]bool),
		nextNumber: 1,
	}
	if opt != nil {
		pdf.opt = *opt
	}
	pdf.log = pdf.opt.Logger
	if pdf.log == nil {
		pdf.log = slog.New(slog.DiscardHandler)
	}
	return pdf
}

// NewWriter prepares a new PDF file for writing.  The file header is
// written immediately.
func NewWriter(w io.Writer, opt *WriterOptions) (*Writer, error) {
	pdf := newWriter(w, opt)

	pdf.version = pdf.opt.Version
	if pdf.version == 0 {
		pdf.version = V1_7
	}
	verString, err := pdf.version.ToString()
	if err != nil {
		return nil, err
	}
	if pdf.opt.XRefStream && pdf.version < V1_5 {
		return nil, fmt.Errorf("cross-reference streams need PDF 1.5, not %s", pdf.version)
	}
	if pdf.opt.Security != nil {
		if pdf.opt.Encrypt == nil {
			return nil, errors.New("missing encryption dictionary")
		}
		if len(pdf.opt.ID) == 0 {
			return nil, errors.New("encrypted files need a file identifier")
		}
	}

	// The entry for object 0 heads the list of free objects.
	pdf.xref.AddObject(NewReference(0, 65535), 0, false)

	_, err = fmt.Fprintf(pdf.w, "%%PDF-%s\n%%\x80\x80\x80\x80\n", verString)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}

// Create creates the named PDF file and opens it for writing.  If a file
// with the same name exists, it is overwritten.  [Writer.Close] closes the
// file.
func Create(name string, opt *WriterOptions) (*Writer, error) {
	fd, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	pdf, err := NewWriter(fd, opt)
	if err != nil {
		fd.Close()
		return nil, err
	}
	return pdf, nil
}

// NewIncrementalWriter prepares an incremental update of the file read by
// base.  The output written to w must be appended to the original file.
// Objects keep their numbers: an object written with the reference of an
// existing object replaces it.
//
// If base is encrypted, the new objects are encrypted with the same key.
// This requires base to be authenticated.
func NewIncrementalWriter(w io.Writer, base *Reader, opt *WriterOptions) (*Writer, error) {
	pdf := newWriter(w, opt)
	pdf.base = base
	pdf.w.pos = base.size
	pdf.version = base.Version()

	if pdf.opt.Encrypt != nil {
		return nil, errors.New("encryption cannot be changed by an incremental update")
	}
	if base.sec != nil {
		if !base.Authenticated() {
			return nil, &AuthenticationError{ID: base.firstID()}
		}
		pdf.opt.Security = base.sec
		pdf.encryptRef = base.encryptRef
	}
	if !pdf.opt.XRefStream {
		pdf.opt.XRefStream = base.newestXRefIsStream()
	}
	if pdf.opt.XRefStream && pdf.version < V1_5 {
		return nil, fmt.Errorf("cross-reference streams need PDF 1.5, not %s", pdf.version)
	}
	if n := base.Size(); n > 1 {
		pdf.nextNumber = uint32(n)
	}

	// The original file may end without a newline.
	_, err := pdf.w.Write([]byte("\n"))
	if err != nil {
		return nil, err
	}
	return pdf, nil
}

// Alloc allocates a new object number.
func (pdf *Writer) Alloc() Reference {
	ref := NewReference(pdf.nextNumber, 0)
	pdf.nextNumber++
	return ref
}

// WriteObject writes an indirect object to the file.  Every object number
// can be written only once per writer.
func (pdf *Writer) WriteObject(obj *IndirectObject) error {
	if pdf.w == nil {
		return errWriterClosed
	}
	ref := obj.Reference
	n := ref.Number()
	if n == 0 {
		return fmt.Errorf("%w: object number 0", ErrOutOfRange)
	}
	if pdf.written[n] {
		return fmt.Errorf("object %d written twice", n)
	}
	return pdf.writeIndirect(ref, obj.Value, ref != pdf.encryptRef)
}

func (pdf *Writer) writeIndirect(ref Reference, obj Object, encrypt bool) error {
	pos := pdf.w.pos
	_, err := fmt.Fprintf(pdf.w, "%d %d obj\n", ref.Number(), ref.Generation())
	if err != nil {
		return err
	}

	pdf.w.ref = ref
	if encrypt {
		pdf.w.sec = pdf.opt.Security
	}
	err = writeObject(pdf.w, obj)
	pdf.w.sec = nil
	if err != nil {
		return fmt.Errorf("object %s: %w", ref, err)
	}

	_, err = pdf.w.Write([]byte("\nendobj\n"))
	if err != nil {
		return err
	}

	n := ref.Number()
	pdf.xref.AddObject(ref, pos, true)
	pdf.written[n] = true
	pdf.nextNumber = max(pdf.nextNumber, n+1)
	return nil
}

// Free marks the object ref as deleted.  The cross-reference entry records
// the next generation number, for use if the object number is reused.
func (pdf *Writer) Free(ref Reference) error {
	if pdf.w == nil {
		return errWriterClosed
	}
	n := ref.Number()
	if n == 0 {
		return fmt.Errorf("%w: object number 0", ErrOutOfRange)
	}
	if pdf.written[n] {
		return fmt.Errorf("object %d written twice", n)
	}
	gen := ref.Generation()
	if gen < 65535 {
		gen++
	}
	pdf.xref.AddObject(NewReference(n, gen), 0, false)
	pdf.written[n] = true
	pdf.nextNumber = max(pdf.nextNumber, n+1)
	return nil
}

// Close writes the cross-reference section and the trailer, and closes the
// underlying io.Writer if it has a Close method.
//
// The trailer must contain a /Root entry, unless this is an incremental
// update.  The /Size, /Prev, /ID and /Encrypt entries are filled in by
// Close.
func (pdf *Writer) Close(trailer Dict) error {
	if pdf.w == nil {
		return errWriterClosed
	}

	t := maps.Clone(trailer)
	if t == nil {
		t = Dict{}
	}
	for key := range xrefStreamKeys {
		delete(t, key)
	}
	delete(t, "Prev")
	delete(t, "XRefStm")

	if base := pdf.base; base != nil {
		for _, key := range []Name{"Root", "Info", "ID", "Encrypt"} {
			if _, ok := t[key]; !ok && base.trailer[key] != nil {
				t[key] = base.trailer[key]
			}
		}
		if base.startxref > 0 {
			t["Prev"] = Integer(base.startxref)
		}
	}
	if _, ok := t["Root"].(Reference); !ok {
		return errors.New("trailer has no /Root reference")
	}

	if len(pdf.opt.ID) > 0 {
		id := make(Array, len(pdf.opt.ID))
		for i, part := range pdf.opt.ID {
			id[i] = String(part)
		}
		t["ID"] = id
	}
	if pdf.opt.Encrypt != nil {
		ref := pdf.Alloc()
		err := pdf.writeIndirect(ref, pdf.opt.Encrypt, false)
		if err != nil {
			return err
		}
		t["Encrypt"] = ref
	}

	xrefPos := pdf.w.pos
	var err error
	if pdf.opt.XRefStream {
		err = pdf.writeXRefStream(t, xrefPos)
	} else {
		err = pdf.writeXRefTable(t)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(pdf.w, "startxref\n%d\n%%%%EOF\n", xrefPos)
	if err != nil {
		return err
	}
	pdf.log.Debug("file written",
		"objects", len(pdf.written),
		"size", pdf.w.pos,
		"xrefStream", pdf.opt.XRefStream)

	w := pdf.w.w
	pdf.w = nil
	if closer, ok := w.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (pdf *Writer) size() int64 {
	size := int64(pdf.xref.Size())
	if pdf.base != nil {
		size = max(size, pdf.base.Size())
	}
	return size
}

func (pdf *Writer) writeXRefTable(trailer Dict) error {
	err := pdf.xref.WriteTable(pdf.w)
	if err != nil {
		return err
	}
	trailer["Size"] = Integer(pdf.size())

	_, err = pdf.w.Write([]byte("trailer\n"))
	if err != nil {
		return err
	}
	err = trailer.PDF(pdf.w)
	if err != nil {
		return err
	}
	_, err = pdf.w.Write([]byte("\n"))
	return err
}

// writeXRefStream writes the cross-reference information as a stream.  The
// stream lists its own offset.
func (pdf *Writer) writeXRefStream(trailer Dict, pos int64) error {
	ref := pdf.Alloc()
	pdf.xref.AddObject(ref, pos, true)

	data, dict, err := pdf.xref.StreamData()
	if err != nil {
		return err
	}
	maps.Copy(trailer, dict)
	trailer["Size"] = Integer(pdf.size())

	stm, err := NewStream(trailer, data, FilterFlate(nil))
	if err != nil {
		return err
	}
	return pdf.writeIndirect(ref, stm, false)
}

var errWriterClosed = errors.New("writer is closed")

// WriteStore writes all objects of s as a new PDF file.
//
// An encryption dictionary referenced by trailer is not copied.  The output
// is encrypted if and only if opt.Security is set.
func WriteStore(w io.Writer, s *Store, trailer Dict, opt *WriterOptions) error {
	pdf, err := NewWriter(w, opt)
	if err != nil {
		return err
	}

	trailer = maps.Clone(trailer)
	skip, _ := trailer["Encrypt"].(Reference)
	delete(trailer, "Encrypt")
	if pdf.opt.Encrypt != nil {
		// Allocate the encryption dictionary after all objects of s.
		pdf.nextNumber = max(pdf.nextNumber, s.MaxNumber()+1)
	}

	for _, ref := range s.References() {
		if skip != 0 && ref == skip {
			continue
		}
		obj, err := s.Get(ref)
		if err != nil {
			return err
		}
		err = pdf.WriteObject(&IndirectObject{Reference: ref, Value: obj})
		if err != nil {
			return err
		}
	}
	return pdf.Close(trailer)
}

// newestXRefIsStream reports whether the newest cross-reference section of
// the file is a cross-reference stream.
func (r *Reader) newestXRefIsStream() bool {
	if r.startxref <= 0 {
		return false
	}
	buf, err := r.readAt(r.startxref, min(16, r.size-r.startxref))
	if err != nil {
		return false
	}
	for len(buf) > 0 && isSpace[buf[0]] {
		buf = buf[1:]
	}
	return len(buf) > 0 && !bytes.HasPrefix(buf, []byte("xref"))
}

type posWriter struct {
	w   io.Writer
	pos int64

	// sec and ref are set while an encrypted object is written.
	sec SecurityHandler
	ref Reference
}

func (w *posWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.pos += int64(n)
	return n, err
}
