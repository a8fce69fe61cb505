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
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Object represents an object in a PDF file.  The basic types which
// implement this interface are [Array], [Bool], [Dict], [HexString],
// [Integer], [Name], [RawData], [Real], [Reference], [*Stream], and
// [String].  The PDF null object is represented by a nil Object.
type Object interface {
	// PDF writes the PDF file representation of the object to w.
	PDF(w io.Writer) error
}

// Bool represents a boolean value in a PDF file.
type Bool bool

// PDF implements the [Object] interface.
func (x Bool) PDF(w io.Writer) error {
	var s string
	if x {
		s = "true"
	} else {
		s = "false"
	}
	_, err := w.Write([]byte(s))
	return err
}

// Integer represents an integer constant in a PDF file.
type Integer int64

// PDF implements the [Object] interface.
func (x Integer) PDF(w io.Writer) error {
	s := strconv.FormatInt(int64(x), 10)
	_, err := w.Write([]byte(s))
	return err
}

// Real represents a real number in a PDF file.
type Real float64

// PDF implements the [Object] interface.
func (x Real) PDF(w io.Writer) error {
	f := float64(x)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("cannot represent %g in a PDF file", f)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s = s + "."
	}
	_, err := w.Write([]byte(s))
	return err
}

// Name represents a name object in a PDF file.  The value is stored without
// the leading slash and with all #xx escapes resolved.
type Name string

// PDF implements the [Object] interface.
func (x Name) PDF(w io.Writer) error {
	buf := &bytes.Buffer{}
	buf.WriteByte('/')
	for i := 0; i < len(x); i++ {
		c := x[i]
		if isSpace[c] || isDelimiter[c] || c < 0x21 || c > 0x7e || c == '#' {
			fmt.Fprintf(buf, "#%02x", c)
		} else {
			buf.WriteByte(c)
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// String represents a string in a PDF file, written using the literal
// (parenthesised) syntax.  The character set encoding, if any, is
// determined by the context.
type String []byte

// PDF implements the [Object] interface.
func (x String) PDF(w io.Writer) error {
	l, err := encryptForWriter(w, []byte(x))
	if err != nil {
		return err
	}

	level := 0
	balanced := true
	for _, c := range l {
		if c == '(' {
			level++
		} else if c == ')' {
			level--
			if level < 0 {
				balanced = false
				break
			}
		}
	}
	if level != 0 {
		balanced = false
	}

	buf := &bytes.Buffer{}
	buf.WriteByte('(')
	for _, c := range l {
		switch {
		case c == '\r':
			buf.WriteString(`\r`)
		case c == '\n':
			buf.WriteString(`\n`)
		case c == '\t':
			buf.WriteString(`\t`)
		case c == '\b':
			buf.WriteString(`\b`)
		case c == '\f':
			buf.WriteString(`\f`)
		case c == '\\':
			buf.WriteString(`\\`)
		case (c == '(' || c == ')') && !balanced:
			buf.WriteByte('\\')
			buf.WriteByte(c)
		case c < 32 || c == 127:
			fmt.Fprintf(buf, `\%03o`, c)
		default:
			buf.WriteByte(c)
		}
	}
	buf.WriteByte(')')

	_, err = w.Write(buf.Bytes())
	return err
}

// HexString represents a string in a PDF file, written using the
// hexadecimal (angle-bracketed) syntax.
type HexString []byte

// PDF implements the [Object] interface.
func (x HexString) PDF(w io.Writer) error {
	l, err := encryptForWriter(w, []byte(x))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "<%x>", l)
	return err
}

// Array represent an array of objects in a PDF file.
type Array []Object

func (x Array) String() string {
	return "<Array, " + strconv.Itoa(len(x)) + " elements>"
}

// PDF implements the [Object] interface.
func (x Array) PDF(w io.Writer) error {
	_, err := w.Write([]byte("["))
	if err != nil {
		return err
	}
	for i, val := range x {
		if i > 0 {
			_, err := w.Write([]byte(" "))
			if err != nil {
				return err
			}
		}
		err = writeObject(w, val)
		if err != nil {
			return err
		}
	}
	_, err = w.Write([]byte("]"))
	return err
}

// Dict represent a Dictionary object in a PDF file.
type Dict map[Name]Object

func (x Dict) String() string {
	res := []string{}
	tp, ok := x["Type"].(Name)
	if ok {
		res = append(res, string(tp)+" Dict")
	} else {
		res = append(res, "Dict")
	}
	if len(x) != 1 {
		res = append(res, strconv.Itoa(len(x))+" entries")
	} else {
		res = append(res, "1 entry")
	}
	return "<" + strings.Join(res, ", ") + ">"
}

// PDF implements the [Object] interface.
// Keys are written in sorted order and entries with a nil value are
// omitted.
func (x Dict) PDF(w io.Writer) error {
	if x == nil {
		_, err := w.Write([]byte("null"))
		return err
	}

	keys := make([]Name, 0, len(x))
	for key, val := range x {
		if val == nil {
			continue
		}
		keys = append(keys, key)
	}
	slices.Sort(keys)

	_, err := w.Write([]byte("<<"))
	if err != nil {
		return err
	}
	for _, name := range keys {
		_, err = w.Write([]byte("\n"))
		if err != nil {
			return err
		}
		err = name.PDF(w)
		if err != nil {
			return err
		}
		_, err = w.Write([]byte(" "))
		if err != nil {
			return err
		}
		err = x[name].PDF(w)
		if err != nil {
			return err
		}
	}
	_, err = w.Write([]byte("\n>>"))
	return err
}

// Stream represent a stream object in a PDF file.  Data holds the encoded
// stream data, i.e. the bytes as they appear between the "stream" and
// "endstream" keywords, after decryption.
//
// When the stream is written, the /Length entry of the dictionary is
// recomputed from the data.
type Stream struct {
	Dict
	Data []byte
}

func (x *Stream) String() string {
	res := []string{}
	tp, ok := x.Dict["Type"].(Name)
	if ok {
		res = append(res, string(tp)+" Stream")
	} else {
		res = append(res, "Stream")
	}
	res = append(res, strconv.Itoa(len(x.Data))+" bytes")
	switch filter := x.Dict["Filter"].(type) {
	case Name:
		res = append(res, string(filter))
	case Array:
		for _, f := range filter {
			if name, ok := f.(Name); ok {
				res = append(res, string(name))
			}
		}
	}
	return "<" + strings.Join(res, ", ") + ">"
}

// PDF implements the [Object] interface.
func (x *Stream) PDF(w io.Writer) error {
	data := x.Data
	if pw, ok := w.(*posWriter); ok && pw.sec != nil {
		buf, err := pw.sec.Encrypt(pw.ref, bytes.Clone(data))
		if err != nil {
			return err
		}
		data = buf
	}

	dict := maps.Clone(x.Dict)
	if dict == nil {
		dict = Dict{}
	}
	dict["Length"] = Integer(len(data))

	err := dict.PDF(w)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte("\nstream\n"))
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	if err != nil {
		return err
	}
	_, err = w.Write([]byte("\nendstream"))
	return err
}

// Reference represents a reference to an indirect object in a PDF file.
// The lower 32 bits represent the object number, the next 16 bits the
// generation number.
type Reference uint64

// NewReference creates a new reference object.
func NewReference(number uint32, generation uint16) Reference {
	return Reference(uint64(number) | uint64(generation)<<32)
}

// Number returns the object number of the reference.
func (x Reference) Number() uint32 {
	return uint32(x)
}

// Generation returns the generation number of the reference.
func (x Reference) Generation() uint16 {
	return uint16(x >> 32)
}

func (x Reference) String() string {
	res := "obj_" + strconv.FormatUint(uint64(x.Number()), 10)
	if gen := x.Generation(); gen > 0 {
		res += "@" + strconv.FormatUint(uint64(gen), 10)
	}
	return res
}

// PDF implements the [Object] interface.
func (x Reference) PDF(w io.Writer) error {
	if x>>48 != 0 {
		return fmt.Errorf("invalid reference: 0x%016x", uint64(x))
	}
	_, err := fmt.Fprintf(w, "%d %d R", x.Number(), x.Generation())
	return err
}

// RawData is a pre-encoded piece of PDF syntax, which is written to the
// output verbatim.  This can be used for placeholder content.
type RawData []byte

// PDF implements the [Object] interface.
func (x RawData) PDF(w io.Writer) error {
	_, err := w.Write(x)
	return err
}

// IndirectObject is an object together with its identity in a PDF file.
type IndirectObject struct {
	Reference Reference
	Value     Object
}

func writeObject(w io.Writer, obj Object) error {
	if obj == nil {
		_, err := w.Write([]byte("null"))
		return err
	}
	return obj.PDF(w)
}

// encryptForWriter encrypts string data, if w is the output of a Writer for
// an encrypted document.
func encryptForWriter(w io.Writer, buf []byte) ([]byte, error) {
	pw, ok := w.(*posWriter)
	if !ok || pw.sec == nil {
		return buf, nil
	}
	return pw.sec.Encrypt(pw.ref, bytes.Clone(buf))
}

// Format formats a PDF object as a string, in the same way as it would be
// written to a PDF file.
func Format(obj Object) string {
	buf := &bytes.Buffer{}
	err := writeObject(buf, obj)
	if err != nil {
		return "<error: " + err.Error() + ">"
	}
	return buf.String()
}

// Equal reports whether two objects are structurally equal.  References are
// compared as values; they are not resolved.
func Equal(a, b Object) bool {
	switch a := a.(type) {
	case nil:
		return b == nil
	case Array:
		b, ok := b.(Array)
		if !ok || len(a) != len(b) {
			return false
		}
		for i := range a {
			if !Equal(a[i], b[i]) {
				return false
			}
		}
		return true
	case Dict:
		b, ok := b.(Dict)
		return ok && equalDict(a, b)
	case *Stream:
		b, ok := b.(*Stream)
		if !ok {
			return false
		}
		if a == nil || b == nil {
			return a == b
		}
		return equalDict(a.Dict, b.Dict) && bytes.Equal(a.Data, b.Data)
	case String:
		b, ok := b.(String)
		return ok && bytes.Equal(a, b)
	case HexString:
		b, ok := b.(HexString)
		return ok && bytes.Equal(a, b)
	case RawData:
		b, ok := b.(RawData)
		return ok && bytes.Equal(a, b)
	default:
		return a == b
	}
}

func equalDict(a, b Dict) bool {
	// nil-valued entries are the same as missing entries
	for key, va := range a {
		if !Equal(va, b[key]) {
			return false
		}
	}
	for key, vb := range b {
		if _, seen := a[key]; !seen && vb != nil {
			return false
		}
	}
	return true
}

var errNotString = errors.New("not a string object")

// AsBytes returns the contents of a [String] or [HexString] object.
func AsBytes(obj Object) ([]byte, error) {
	switch s := obj.(type) {
	case String:
		return s, nil
	case HexString:
		return s, nil
	default:
		return nil, errNotString
	}
}

var (
	isSpace = [256]bool{
		0:  true,
		9:  true,
		10: true,
		12: true,
		13: true,
		32: true,
	}
	isDelimiter = [256]bool{
		'(': true,
		')': true,
		'<': true,
		'>': true,
		'[': true,
		']': true,
		'{': true,
		'}': true,
		'/': true,
		'%': true,
	}
)
