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
	"math"
	"strconv"
)

// XRefType describes the state of an object number in the cross-reference
// index.
type XRefType int

// These are the possible types of cross-reference entries.
const (
	XRefFree XRefType = iota
	XRefInUse
	XRefCompressed
)

func (tp XRefType) String() string {
	switch tp {
	case XRefFree:
		return "free"
	case XRefInUse:
		return "in use"
	case XRefCompressed:
		return "compressed"
	default:
		return "XRefType(" + strconv.Itoa(int(tp)) + ")"
	}
}

// XRefEntry is an entry of the cross-reference index of a PDF file.
type XRefEntry struct {
	Type XRefType

	// Offset is the byte offset of an object which is in use.
	Offset int64

	// Generation is the generation number of an object which is in use, or
	// the generation to use when a free object number is reused.
	Generation uint16

	// Stream is the object number of the object stream holding a compressed
	// object, and Index is the position of the object within that stream.
	Stream uint32
	Index  int

	// Next is the next free object number, for free entries.
	Next uint32
}

// ref returns the reference of the object described by the entry.
func (e *XRefEntry) ref(number uint32) Reference {
	if e.Type == XRefCompressed {
		return NewReference(number, 0)
	}
	return NewReference(number, e.Generation)
}

type xrefMap map[uint32]*XRefEntry

// merge adds the entries of other which are not yet present.
func (m xrefMap) merge(other xrefMap) {
	for n, e := range other {
		if _, seen := m[n]; !seen {
			m[n] = e
		}
	}
}

// xrefStreamKeys lists the keys of an xref stream dictionary which describe
// the stream, and are not part of the trailer.
var xrefStreamKeys = map[Name]bool{
	"Type":        true,
	"W":           true,
	"Index":       true,
	"Length":      true,
	"Filter":      true,
	"DecodeParms": true,
}

const defaultMaxXRefSections = 1024

// readXRefChain reads all cross-reference sections, starting with the newest
// one at the given offset and following the /Prev links.
func (r *Reader) readXRefChain(start int64) error {
	maxSections := r.opt.MaxXRefSections
	if maxSections <= 0 {
		maxSections = defaultMaxXRefSections
	}

	xref := xrefMap{}
	trailer := Dict{}
	seen := make(map[int64]bool)
	pos := start
	for {
		if seen[pos] {
			return errorAt(pos, ErrPrevChainCycle)
		}
		if len(seen) >= maxSections {
			return errorAt(pos,
				fmt.Errorf("%w: more than %d xref sections", ErrOutOfRange, maxSections))
		}
		seen[pos] = true

		entries, dict, err := r.readXRefSection(pos)
		if err != nil {
			return err
		}
		r.updates++

		// newer sections take precedence
		xref.merge(entries)
		for key, val := range dict {
			if _, ok := trailer[key]; !ok {
				trailer[key] = val
			}
		}

		prev, hasPrev := dict["Prev"]
		if !hasPrev {
			break
		}
		prevPos, ok := prev.(Integer)
		if !ok || prevPos <= 0 || int64(prevPos) >= r.size {
			err := errorAt(pos, fmt.Errorf("%w: invalid /Prev %s", ErrNoXRef, Format(prev)))
			if r.strict() {
				return err
			}
			r.recovered("ignoring invalid /Prev", "pos", pos, "prev", Format(prev))
			break
		}
		pos = int64(prevPos)
	}

	r.xref = xref
	r.trailer = trailer
	return nil
}

// readXRefSection reads the xref table or xref stream at the given offset.
// The returned dictionary holds the trailer entries of the section.
func (r *Reader) readXRefSection(pos int64) (xrefMap, Dict, error) {
	t := NewTokenizer(r.r, r.size)
	t.SeekTo(pos)
	tok, err := t.PeekToken(0)
	if err != nil {
		return nil, nil, wrap(err, "xref section")
	}
	if !tok.is(TokenRegular, "xref") {
		return r.readXRefStream(pos)
	}
	t.NextToken()

	entries, trailer, err := r.readXRefTable(t)
	if err != nil {
		return nil, nil, err
	}

	// In hybrid files, the xref stream given by /XRefStm contains the
	// entries for compressed objects.  These take priority over the table.
	if obj, ok := trailer["XRefStm"]; ok {
		stmPos, ok := obj.(Integer)
		if !ok || stmPos <= 0 || int64(stmPos) >= r.size {
			err := errorAt(pos, fmt.Errorf("%w: invalid /XRefStm %s", ErrNoXRef, Format(obj)))
			if r.strict() {
				return nil, nil, err
			}
			r.recovered("ignoring invalid /XRefStm", "pos", pos)
			return entries, trailer, nil
		}
		stmEntries, _, err := r.readXRefStream(int64(stmPos))
		if err != nil {
			if r.strict() {
				return nil, nil, err
			}
			r.recovered("ignoring unreadable /XRefStm", "pos", int64(stmPos), "error", err)
			return entries, trailer, nil
		}
		stmEntries.merge(entries)
		entries = stmEntries
	}

	return entries, trailer, nil
}

// readXRefTable reads a classic cross-reference table, after the "xref"
// keyword, together with the following trailer dictionary.
func (r *Reader) readXRefTable(t *Tokenizer) (xrefMap, Dict, error) {
	entries := xrefMap{}

subsections:
	for {
		tok, err := t.NextToken()
		if err != nil {
			return nil, nil, wrap(err, "xref table")
		}
		if tok.is(TokenRegular, "trailer") {
			break
		}

		first, err1 := strconv.ParseUint(string(tok.Text), 10, 32)
		countTok, err2 := t.NextToken()
		var count uint64
		if err2 == nil {
			count, err2 = strconv.ParseUint(string(countTok.Text), 10, 32)
		}
		if err1 != nil || err2 != nil {
			err := errorAt(tok.Pos, fmt.Errorf("%w: invalid subsection header", ErrNoXRef))
			if r.strict() {
				return nil, nil, err
			}
			r.recovered("malformed xref subsection header", "pos", tok.Pos)
			t.SeekTo(tok.Pos)
			break subsections
		}

		for i := range count {
			number := first + i
			lineStart := t.Tell()
			e, err := readXRefLine(t)
			if err != nil {
				if r.strict() {
					return nil, nil, err
				}
				r.recovered("truncated xref subsection",
					"pos", lineStart, "number", number, "error", err)
				// the bad line may have swallowed the "trailer" keyword
				t.SeekTo(lineStart)
				break subsections
			}
			if number > math.MaxUint32 {
				continue
			}
			if _, seen := entries[uint32(number)]; !seen {
				entries[uint32(number)] = e
			}
		}
	}

	// In recover mode, a damaged table may leave us before the trailer.
	tok, err := t.PeekToken(0)
	if err != nil {
		return nil, nil, wrap(err, "xref trailer")
	}
	if !tok.is(TokenDelimiter, "<<") {
		pos, err := r.findForward(t.Tell(), []byte("trailer"), maxTrailerScan)
		if err != nil {
			return nil, nil, errorAt(t.Tell(), fmt.Errorf("%w: trailer not found", ErrNoXRef))
		}
		t.SeekTo(pos + int64(len("trailer")))
	}

	obj, err := NewDecoder(t).ReadObject()
	if err != nil {
		return nil, nil, wrap(err, "trailer")
	}
	trailer, ok := obj.(Dict)
	if !ok {
		return nil, nil, errorAt(tok.Pos,
			fmt.Errorf("%w: trailer is %s, not a dictionary", ErrNoXRef, Format(obj)))
	}
	return entries, trailer, nil
}

// maxTrailerScan limits how far a damaged xref table is searched for the
// "trailer" keyword.
const maxTrailerScan = 1 << 20

// readXRefLine reads one entry of a classic xref table.
func readXRefLine(t *Tokenizer) (*XRefEntry, error) {
	var toks [3]Token
	for i := range toks {
		tok, err := t.NextToken()
		if err != nil {
			return nil, err
		}
		toks[i] = tok
	}

	bad := errorAt(toks[0].Pos, fmt.Errorf("%w: malformed xref line", ErrNoXRef))
	if toks[0].Kind != TokenRegular || toks[1].Kind != TokenRegular {
		return nil, bad
	}
	offs, err := strconv.ParseInt(string(toks[0].Text), 10, 64)
	if err != nil || offs < 0 {
		return nil, bad
	}
	gen, err := strconv.ParseUint(string(toks[1].Text), 10, 16)
	if err != nil {
		// a known quirk: "0000000000 65536 f" as the head of the free list
		if offs == 0 && string(toks[1].Text) == "65536" && toks[2].is(TokenRegular, "f") {
			gen = 65535
		} else {
			return nil, bad
		}
	}

	switch {
	case toks[2].is(TokenRegular, "n"):
		return &XRefEntry{Type: XRefInUse, Offset: offs, Generation: uint16(gen)}, nil
	case toks[2].is(TokenRegular, "f"):
		next := uint32(0)
		if offs <= math.MaxUint32 {
			next = uint32(offs)
		}
		return &XRefEntry{Type: XRefFree, Next: next, Generation: uint16(gen)}, nil
	default:
		return nil, bad
	}
}

// readXRefStream reads the xref stream at the given offset.
func (r *Reader) readXRefStream(pos int64) (xrefMap, Dict, error) {
	obj, ref, err := r.readObjectAt(pos, 0, false)
	if err != nil {
		return nil, nil, wrap(err, "xref stream")
	}
	stm, ok := obj.(*Stream)
	if !ok {
		return nil, nil, errorAt(pos, fmt.Errorf("%w: no xref stream at this offset", ErrNoXRef))
	}
	if tp, _ := stm.Dict["Type"].(Name); tp != "XRef" {
		return nil, nil, errorAt(pos, fmt.Errorf("%w: stream of type /%s found, expected /XRef", ErrNoXRef, tp))
	}
	r.xrefStreams[ref] = true

	data, err := stm.Decode()
	if err != nil {
		return nil, nil, errorAt(pos, fmt.Errorf("%w: %w", ErrNoXRef, err))
	}
	entries, err := decodeXRefStream(stm.Dict, data)
	if err != nil {
		return nil, nil, errorAt(pos, err)
	}

	trailer := Dict{}
	for key, val := range stm.Dict {
		if !xrefStreamKeys[key] {
			trailer[key] = val
		}
	}
	return entries, trailer, nil
}

type xrefSubsection struct {
	start, count uint32
}

// decodeXRefStream decodes the fixed-width records of an xref stream.
func decodeXRefStream(dict Dict, data []byte) (xrefMap, error) {
	size, ok := dict["Size"].(Integer)
	if !ok || size < 0 || size > math.MaxUint32 {
		return nil, fmt.Errorf("%w: invalid /Size in xref stream", ErrNoXRef)
	}

	W, ok := dict["W"].(Array)
	if !ok || len(W) < 3 {
		return nil, fmt.Errorf("%w: invalid /W in xref stream", ErrNoXRef)
	}
	var w [3]int
	for i := range w {
		wi, ok := W[i].(Integer)
		if !ok || wi < 0 || wi > 8 {
			return nil, fmt.Errorf("%w: invalid /W in xref stream", ErrNoXRef)
		}
		w[i] = int(wi)
	}
	recordSize := w[0] + w[1] + w[2]
	if recordSize == 0 {
		return nil, fmt.Errorf("%w: empty records in xref stream", ErrNoXRef)
	}

	var ss []xrefSubsection
	switch index := dict["Index"].(type) {
	case nil:
		ss = append(ss, xrefSubsection{0, uint32(size)})
	case Array:
		if len(index)%2 != 0 {
			return nil, fmt.Errorf("%w: invalid /Index in xref stream", ErrNoXRef)
		}
		for i := 0; i < len(index); i += 2 {
			start, ok1 := index[i].(Integer)
			count, ok2 := index[i+1].(Integer)
			if !ok1 || !ok2 || start < 0 || count < 0 || start+count > math.MaxUint32 {
				return nil, fmt.Errorf("%w: invalid /Index in xref stream", ErrNoXRef)
			}
			ss = append(ss, xrefSubsection{uint32(start), uint32(count)})
		}
	default:
		return nil, fmt.Errorf("%w: invalid /Index in xref stream", ErrNoXRef)
	}

	entries := xrefMap{}
	for _, sub := range ss {
		for i := range sub.count {
			if len(data) < recordSize {
				return nil, fmt.Errorf("%w: xref stream data too short", ErrNoXRef)
			}
			rec := data[:recordSize]
			data = data[recordSize:]

			number := sub.start + i
			if _, seen := entries[number]; seen {
				continue
			}

			tp := uint64(1)
			if w[0] > 0 {
				tp = decodeUint(rec[:w[0]])
			}
			f2 := decodeUint(rec[w[0] : w[0]+w[1]])
			f3 := decodeUint(rec[w[0]+w[1]:])

			switch tp {
			case 0:
				entries[number] = &XRefEntry{
					Type:       XRefFree,
					Next:       uint32(min(f2, math.MaxUint32)),
					Generation: uint16(min(f3, math.MaxUint16)),
				}
			case 1:
				if f2 > math.MaxInt64 {
					continue
				}
				entries[number] = &XRefEntry{
					Type:       XRefInUse,
					Offset:     int64(f2),
					Generation: uint16(min(f3, math.MaxUint16)),
				}
			case 2:
				if f2 > math.MaxUint32 || f3 > math.MaxInt32 {
					continue
				}
				entries[number] = &XRefEntry{
					Type:   XRefCompressed,
					Stream: uint32(f2),
					Index:  int(f3),
				}
			default:
				// Other types are reserved and must be treated as references
				// to the null object.
			}
		}
	}
	return entries, nil
}

func decodeUint(buf []byte) uint64 {
	var res uint64
	for _, b := range buf {
		res = res<<8 | uint64(b)
	}
	return res
}

// findStartXRef locates the "startxref" keyword near the end of the file
// and returns the offset it points to.
func (r *Reader) findStartXRef() (int64, error) {
	end := r.size
	window := int64(64 * 1024)
	if r.strict() {
		// trailing white space is allowed after %%EOF
		var err error
		end, err = r.trimTrailingSpace()
		if err != nil {
			return 0, err
		}
		window = 1024
	}
	start := max(end-window, 0)
	buf := make([]byte, end-start)
	_, err := r.r.ReadAt(buf, start)
	if err != nil {
		return 0, err
	}

	if r.strict() {
		if !bytes.HasSuffix(buf, []byte("%%EOF")) {
			if bytes.Contains(buf, []byte("%%EOF")) {
				return 0, errorAt(end, fmt.Errorf("%w: garbage after %%%%EOF", ErrNoXRef))
			}
			return 0, errorAt(end, fmt.Errorf("%w: %%%%EOF marker not found", ErrNoXRef))
		}
	}

	idx := bytes.LastIndex(buf, []byte("startxref"))
	if idx < 0 {
		return 0, errorAt(start, fmt.Errorf("%w: startxref not found", ErrNoXRef))
	}
	pos := start + int64(idx)

	t := NewTokenizer(r.r, r.size)
	t.SeekTo(pos + int64(len("startxref")))
	tok, err := t.NextToken()
	if err != nil {
		return 0, wrap(err, "startxref")
	}
	xrefPos, err := strconv.ParseInt(string(tok.Text), 10, 64)
	if err != nil || xrefPos <= 0 || xrefPos >= r.size {
		return 0, errorAt(tok.Pos, fmt.Errorf("%w: invalid startxref value %q", ErrNoXRef, tok.Text))
	}
	return xrefPos, nil
}

// trimTrailingSpace returns the file size without trailing white space.
func (r *Reader) trimTrailingSpace() (int64, error) {
	const chunk = 512
	end := r.size
	buf := make([]byte, chunk)
	for end > 0 {
		start := max(end-chunk, 0)
		n := int(end - start)
		_, err := r.r.ReadAt(buf[:n], start)
		if err != nil {
			return 0, err
		}
		i := n
		for i > 0 && isSpace[buf[i-1]] {
			i--
		}
		end = start + int64(i)
		if i > 0 {
			break
		}
	}
	return end, nil
}

// findForward returns the offset of the first occurrence of pat at or after
// pos, searching at most limit bytes.
func (r *Reader) findForward(pos int64, pat []byte, limit int64) (int64, error) {
	const chunk = 64 * 1024
	end := min(pos+limit, r.size)
	buf := make([]byte, chunk+len(pat))
	for pos < end {
		n := min(int64(len(buf)), r.size-pos)
		_, err := r.r.ReadAt(buf[:n], pos)
		if err != nil {
			return 0, err
		}
		if idx := bytes.Index(buf[:n], pat); idx >= 0 && pos+int64(idx) < end {
			return pos + int64(idx), nil
		}
		if pos+n >= r.size {
			break
		}
		pos += chunk
	}
	return 0, errNotFound
}

var errNotFound = errors.New("not found")
